package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tfl-lake/internal/api"
	"tfl-lake/internal/middleware"
	"tfl-lake/internal/service/pipeline"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API, optionally with a bronze schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.connectedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if addr == "" {
				addr = a.Settings.ListenAddr
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var sched *pipeline.Scheduler
			if schedule != "" {
				sched = pipeline.NewScheduler(a.Orchestrator, a.Logger)
				if err := sched.Add(schedule); err != nil {
					return err
				}
				sched.Start(ctx)
			}

			handler := api.NewHandler(a.Paths, a.Ingestion.Jobs(), a.Orchestrator, a.Settings.LocalStorage(), a.Logger)
			srv := &http.Server{
				Addr: addr,
				Handler: api.NewRouter(handler, api.RouterOptions{
					CORSAllowedOrigins: a.Settings.CORSAllowedOrigins,
					RateLimit: middleware.RateLimitConfig{
						RequestsPerSecond: a.Settings.RateLimitRPS,
						Burst:             a.Settings.RateLimitBurst,
					},
					Logger: a.Logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("http server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if sched != nil {
					sched.Stop()
				}
				return err
			case <-ctx.Done():
			}

			a.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if sched != nil {
				sched.Stop()
			}
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default LISTEN_ADDR or :8080)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Also trigger bronze runs on this cron schedule")
	return cmd
}
