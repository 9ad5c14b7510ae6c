package main

import (
	"io"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/logger"
	"github.com/samcharles93/chanpack/internal/packager"
)

// globals holds state shared by every command.
type globals struct {
	stdout io.Writer
	stderr io.Writer
	cfg    Config

	logLevel  string
	logFormat string
	debug     bool
	jsonOut   bool
}

func (g *globals) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &g.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &g.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &g.debug,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print results as JSON",
			Destination: &g.jsonOut,
		},
	}
}

// packOptions are the flags shared by commands that write packages.
type packOptions struct {
	workers   int64
	retries   int64
	backoff   time.Duration
	overwrite bool
	outputDir string
}

func (o *packOptions) flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "channels written in parallel",
			Value:       int64(runtime.NumCPU()),
			Destination: &o.workers,
		},
		&cli.Int64Flag{
			Name:        "retries",
			Usage:       "write attempts per channel",
			Value:       packager.DefaultRetries,
			Destination: &o.retries,
		},
		&cli.DurationFlag{
			Name:        "backoff",
			Usage:       "wait before the second write attempt; doubles after each failure",
			Value:       packager.DefaultBackoff,
			Destination: &o.backoff,
		},
		&cli.BoolFlag{
			Name:        "overwrite",
			Aliases:     []string{"f"},
			Usage:       "replace existing output files",
			Destination: &o.overwrite,
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     []string{"o"},
			Usage:       "directory for generated packages",
			Destination: &o.outputDir,
		},
	}
}

// apply fills unset flags from the tool config.
func (o *packOptions) apply(cmd *cli.Command, cfg Config) {
	if cfg.Workers != nil && !cmd.IsSet("workers") {
		o.workers = *cfg.Workers
	}
	if cfg.Retries != nil && !cmd.IsSet("retries") {
		o.retries = *cfg.Retries
	}
	if cfg.Overwrite != nil && !cmd.IsSet("overwrite") {
		o.overwrite = *cfg.Overwrite
	}
	if cfg.OutputDir != "" && !cmd.IsSet("output-dir") {
		o.outputDir = cfg.OutputDir
	}
}

func (o *packOptions) newPackager(log logger.Logger) (*packager.Packager, error) {
	strategy, err := packager.Select(packager.NativeStrategy{})
	if err != nil {
		return nil, err
	}
	log.Debug("patch strategy selected", "strategy", strategy.Name())
	return packager.New(packager.Options{
		Workers:   int(o.workers),
		Retries:   int(o.retries),
		Backoff:   o.backoff,
		Overwrite: o.overwrite,
		Logger:    log,
		Strategy:  strategy,
	}), nil
}
