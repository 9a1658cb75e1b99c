package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/himanishpuri/acousticdup/internal/config"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fpcalc"
	"github.com/himanishpuri/acousticdup/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appl := &cli.Command{
		Name:  "acousticdup",
		Usage: "Find duplicate songs by comparing chromaprint fingerprints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars(config.ConfigPathEnv),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the SQLite database file",
				Sources: cli.EnvVars(config.DBPathEnv),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Goroutines per comparison scan (0 uses every CPU)",
			},
		},
		Commands: []*cli.Command{
			importCommand(),
			findDupsCommand(),
			compareCommand(),
			similarCommand(),
			deleteCommand(),
			statsCommand(),
			configCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConfig merges the configuration file with the global flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	if cfg.LogLevel != "" {
		level, ok := logger.ParseLevel(cfg.LogLevel)
		if !ok {
			return config.Config{}, fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, cfg.LogLevel)
		}
		logger.SetLevel(level)
	}
	return cfg, nil
}

func openService(cmd *cli.Command) (acousticdup.Service, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}

	fpOpts := fpcalc.DefaultOptions()
	if cfg.FpcalcPath != "" {
		fpOpts.Binary = cfg.FpcalcPath
	}

	svc, err := acousticdup.NewService(
		acousticdup.WithDBPath(cfg.DBPath),
		acousticdup.WithMaxOffset(cfg.MaxOffset),
		acousticdup.WithStoreThreshold(cfg.StoreThreshold),
		acousticdup.WithShortSongStoreThreshold(cfg.ShortSongStoreThreshold),
		acousticdup.WithShortSongLength(cfg.ShortSongLength),
		acousticdup.WithMatchThreshold(cfg.MatchThreshold),
		acousticdup.WithWorkers(cfg.Workers),
		acousticdup.WithFpcalc(fpOpts),
	)
	if err != nil {
		return nil, config.Config{}, err
	}
	return svc, cfg, nil
}
