// Package cli implements the tfl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tfl-lake/internal/app"
	"tfl-lake/internal/config"
	"tfl-lake/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	output     outputFormat
	env        string
	configPath string
	logLevel   string
	envFile    string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if getOutputFormat(rootCmd) == outputJSON {
			_ = PrintJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorObject classifies err for JSON output.
func errorObject(err error) map[string]any {
	obj := map[string]any{"error": err.Error()}
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		cfgMissing *domain.ConfigurationNotFoundError
		cfgBad     *domain.ConfigurationUnreadableError
		empty      *domain.EmptyTableError
		timeout    *domain.JobTimeoutError
	)
	switch {
	case errors.As(err, &cfgMissing):
		obj["kind"] = "configuration_not_found"
		obj["available"] = cfgMissing.Available
	case errors.As(err, &cfgBad):
		obj["kind"] = "configuration_unreadable"
	case errors.As(err, &timeout):
		obj["kind"] = "job_timeout"
	case errors.As(err, &empty):
		obj["kind"] = "empty_table"
	case errors.As(err, &notFound):
		obj["kind"] = "not_found"
	case errors.As(err, &validation):
		obj["kind"] = "validation"
	case errors.As(err, &conflict):
		obj["kind"] = "conflict"
	}
	return obj
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tfl",
		Short:         "TfL lake bronze pipeline",
		Long:          "Provision the TfL lake workspace and ingest raw feeds into bronze tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("TFL_OUTPUT"); v != "" {
					return opts.output.Set(v)
				}
			}
			return nil
		},
	}

	opts.output = outputFormat(defaultOutputFormat())
	rootCmd.PersistentFlags().VarP(&opts.output, "output", "o", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&opts.env, "env", "e", "", "Deployment environment (overrides ENVIRONMENT)")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Lake configuration file (overrides TFL_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading settings")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newEnvCmd(opts))
	rootCmd.AddCommand(newPathsCmd(opts))
	rootCmd.AddCommand(newSetupCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))
	rootCmd.AddCommand(newBronzeCmd(opts))
	rootCmd.AddCommand(newRunsCmd(opts))
	rootCmd.AddCommand(newCredentialCmd(opts))
	rootCmd.AddCommand(newLocationCmd(opts))
	rootCmd.AddCommand(newVolumeCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// settings reads process settings and applies flag overrides.
func (o *rootOptions) settings() (*config.Settings, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	s, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if o.env != "" {
		s.Environment = o.env
	}
	if o.configPath != "" {
		s.ConfigPath = o.configPath
	}
	if o.logLevel != "" {
		s.LogLevel = o.logLevel
	}
	if err := s.CheckEncryptionKey(); err != nil {
		return nil, err
	}
	return s, nil
}

// lakeConfig resolves the environment and loads its lake configuration.
func (o *rootOptions) lakeConfig() (*config.Settings, *config.LakeConfig, error) {
	s, err := o.settings()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadLakeConfig(s.ConfigPath, s.Environment)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func newLogger(cmd *cobra.Command, s *config.Settings) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: s.SlogLevel()}))
	for _, w := range s.Warnings {
		logger.Warn(w)
	}
	return logger
}

// openApp wires the application. The caller must Close it.
func (o *rootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	s, err := o.settings()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), app.Deps{Settings: s, Logger: newLogger(cmd, s)})
}

// connectedApp wires the application and attaches the provisioned catalog.
func (o *rootOptions) connectedApp(cmd *cobra.Command) (*app.App, error) {
	a, err := o.openApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
