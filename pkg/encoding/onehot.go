package encoding

import (
	"sort"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// OneHot expands a categorical column into one indicator column per distinct
// non-missing value. Columns are named <feature>_<value> and returned in sorted
// category order; rows with a missing value are 0 in every indicator.
func OneHot(frame *models.Frame, feature string) (names []string, columns map[string][]int64, ok bool) {
	values, ok := frame.Column(feature)
	if !ok {
		return nil, nil, false
	}

	labels := make([]string, len(values))
	seen := make(map[string]bool)
	for i, v := range values {
		if models.IsMissing(v) {
			continue
		}
		labels[i] = models.FormatValue(v)
		seen[labels[i]] = true
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	columns = make(map[string][]int64, len(categories))
	names = make([]string, len(categories))
	for j, c := range categories {
		name := feature + "_" + c
		names[j] = name
		columns[name] = make([]int64, len(values))
	}
	for i, v := range values {
		if models.IsMissing(v) {
			continue
		}
		columns[feature+"_"+labels[i]][i] = 1
	}
	return names, columns, true
}
