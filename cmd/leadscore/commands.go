package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/featurestore"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/pipeline"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/scheduler"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/telemetry"
)

func encodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "one-hot encode model_input into the features and target tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := pipeline.NewService(a.cfg, a.log, nil)
			res, err := svc.Encode(cmd.Context())
			pushMetrics(cmd.Context(), a.log, svc.Metrics())
			if err != nil {
				return err
			}
			if !res.Aborted {
				fmt.Fprintf(cmd.OutOrStdout(), "encoded %d rows into %s and %s\n",
					res.Rows(), a.cfg.Store.FeaturesTable, a.cfg.Store.TargetTable)
			}
			return nil
		},
	}
}

func trainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "train the classifier on the encoded tables and log it to the tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := pipeline.NewService(a.cfg, a.log, nil)
			res, err := svc.Train(cmd.Context())
			pushMetrics(cmd.Context(), a.log, svc.Metrics())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s registered %s version %s\n",
				res.Run.ID, res.ModelVersion.Name, res.ModelVersion.Version)
			return nil
		},
	}
}

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "encode then train",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := pipeline.NewService(a.cfg, a.log, nil).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s registered %s version %s\n",
				exec.ID, exec.Training.ModelVersion.Name, exec.Training.ModelVersion.Version)
			return nil
		},
	}
}

func scheduleCmd(a *app) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "run the pipeline on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = a.cfg.Schedule.Cron
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc := pipeline.NewService(a.cfg, a.log, nil)
			sched, err := scheduler.NewService(spec, scheduler.RunnerFunc(func(ctx context.Context) error {
				_, err := svc.Run(ctx)
				return err
			}), a.log)
			if err != nil {
				return err
			}

			var srv *http.Server
			if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", svc.Metrics().Handler())
				srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					a.log.Info("Serving metrics", logger.String("addr", addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("Metrics server failed", err)
					}
				}()
			}

			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.log.Info("Shutting down")

			sched.Stop()
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("failed to stop metrics server: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron expression, overrides schedule.cron")
	return cmd
}

func importCSVCmd(a *app) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "import-csv FILE",
		Short: "load a cleaned lead CSV into the input table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				table = a.cfg.Store.InputTable
			}
			store, err := featurestore.Open(cmd.Context(), a.cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ImportCSV(cmd.Context(), args[0], table)
			if err != nil {
				return err
			}
			a.log.Info("Imported CSV", logger.String("file", args[0]), logger.String("table", table), logger.Int("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", n, table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "destination table, defaults to store.input_table")
	return cmd
}

func pushMetrics(ctx context.Context, log *logger.Logger, m *telemetry.Metrics) {
	if err := m.Push(context.WithoutCancel(ctx)); err != nil {
		log.Warn("Failed to push metrics", logger.Error(err))
	}
}
