package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/engine/streamaggregator"
	"DDoSDefender/internal/features"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/store"
)

var allCommands []cli.Command

// bootstrapCommands registers commands from each command file's init.
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "load configuration from `FILE`",
		Value: "configs/config.yaml",
	}
	windowFlag = cli.IntFlag{
		Name:  "window, w",
		Usage: "window size in `MINUTES`",
		Value: 5,
	}
	limitFlag = cli.IntFlag{
		Name:  "limit, n",
		Usage: "number of stored records to read",
		Value: 10,
	}
	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "print a table instead of CSV",
	}
)

// resources are the collaborators most commands need.
type resources struct {
	cfg   *config.Config
	log   *logrus.Logger
	chain *store.Chain
}

func loadResources(c *cli.Context) (*resources, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	chain, err := store.Open(cfg.Stores, log)
	if err != nil {
		return nil, err
	}
	return &resources{cfg: cfg, log: log, chain: chain}, nil
}

func (r *resources) Close() {
	if err := r.chain.Close(); err != nil {
		r.log.WithError(err).Warn("Failed to close stores")
	}
}

func (r *resources) pipeline() *features.Pipeline {
	return features.NewPipeline(
		features.NewAggregator(streamaggregator.Thresholds(r.cfg.Anomaly)), r.chain, r.chain,
		features.WithRecentLimit(r.cfg.Pipeline.RecentLimit),
		features.WithLogger(r.log),
	)
}

// parseTime accepts RFC 3339 timestamps. An empty string means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339: %w", s, err)
	}
	return t, nil
}

func exitErr(err error) error {
	return cli.NewExitError(err.Error(), 1)
}
