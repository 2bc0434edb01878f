package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/app"
	"github.com/accomplish-dev/accomplish-cli/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "accomplish",
		Usage: "Capture and recap your work journal from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (defaults to ~/.accomplish/config.toml)",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "configuration profile",
				Sources: cli.EnvVars("ACCOMPLISH_ENV"),
				Value:   app.DefaultConfigProfile,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: app.DefaultConfigLogLevel.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: string(app.DefaultConfigLogFormat),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			captureCommand(),
			logCommand(),
			recapCommand(),
		},
		// Exit-coded errors are returned to main so the logging pipeline
		// flushes before the process exits.
		ExitErrHandler: func(ctx context.Context, cmd *cli.Command, err error) {},
	}

	err := cmd.Run(ctx, args)
	_ = observability.Shutdown(context.WithoutCancel(ctx))
	return err
}

// newApp loads configuration for the selected profile, sets up logging, and
// wires the application services. Every subcommand action starts here.
func newApp(ctx context.Context, cmd *cli.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg, app.WithRateLimitHook(func(wait time.Duration) {
		fmt.Fprintf(os.Stderr, "Rate limited; retrying in %s.\n", wait)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	slog.DebugContext(ctx, "application configured",
		"profile", cfg.Profile, "base_url", cfg.API.BaseURL, "storage", cfg.Credentials.Storage)

	return application, nil
}
