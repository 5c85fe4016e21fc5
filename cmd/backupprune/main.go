package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"github.com/urfave/cli/v2"

	"github.com/dev-tams/backupprune/internal/app"
	"github.com/dev-tams/backupprune/internal/config"
	"github.com/dev-tams/backupprune/internal/logging"
	"github.com/dev-tams/backupprune/internal/metrics"
	"github.com/dev-tams/backupprune/internal/notify"
	"github.com/dev-tams/backupprune/internal/storage"
)

func main() {
	cliApp := &cli.App{
		Name:  "backupprune",
		Usage: "apply retention policies to backup snapshots on a remote",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config yaml (optional; environment is always read)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from a dotenv file before reading config",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run retention once against the configured remote",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "log what would be deleted without deleting it",
					},
				},
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.close()
					if c.Bool("dry-run") {
						env.cfg.DryRun = true
					}
					_, err = app.RunRetention(c.Context, env.cfg, env.remote, env.opts)
					return err
				},
			},
			{
				Name:  "plan",
				Usage: "print which backups would be kept and deleted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "text",
						Usage:   "output format: text, json or yaml",
					},
				},
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.close()
					res, err := app.PlanRetention(c.Context, env.cfg, env.remote, env.opts)
					if err != nil {
						return err
					}
					return writePlan(os.Stdout, c.String("output"), res)
				},
			},
			{
				Name:  "daemon",
				Usage: "run retention on the configured cron schedule",
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.close()
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					env.opts.Metrics = metrics.New()
					return app.RunDaemon(ctx, env.cfg, env.remote, env.opts)
				},
			},
			{
				Name:  "check",
				Usage: "validate configuration and verify the remote can be listed",
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.close()
					res, err := app.PlanRetention(c.Context, env.cfg, env.remote, env.opts)
					if err != nil {
						return err
					}
					fmt.Printf("remote %s reachable: %d entries, %d backups, policy %s\n",
						env.cfg.Remote, res.Listed, res.Candidates, res.Policy)
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runEnv struct {
	cfg    *config.Config
	remote storage.Remote
	opts   app.Options
}

func (e *runEnv) close() {
	if err := storage.Close(e.remote); err != nil {
		e.opts.Log.Warn("closing remote client failed", "error", err)
	}
}

// setup loads configuration and builds the logger, remote and notifier
// shared by every command.
func setup(c *cli.Context) (*runEnv, error) {
	if path := c.String("env-file"); path != "" {
		if err := gotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	// Bootstrap logger for config warnings; replaced once log settings are known.
	bootLevel := "info"
	if c.Bool("verbose") {
		bootLevel = "debug"
	}
	bootLog, err := logging.New(logging.Config{Level: bootLevel, Format: os.Getenv("LOG_FORMAT")})
	if err != nil {
		bootLog = slog.Default()
	}

	cfg, err := config.Load(c.String("config"), bootLog)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	remote, err := storage.FromConfig(c.Context, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return nil, err
	}

	return &runEnv{
		cfg:    cfg,
		remote: remote,
		opts: app.Options{
			Log:      log.With("remote", remote.Name()),
			Notifier: notifier,
		},
	}, nil
}
