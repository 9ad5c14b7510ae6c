package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/chanconfig"
	"github.com/samcharles93/chanpack/internal/logger"
)

func batchCmd(g *globals) *cli.Command {
	var (
		opts       packOptions
		configFile string
	)

	return &cli.Command{
		Name:      "batch",
		Usage:     "Generate every channel listed in a channel config",
		ArgsUsage: "<base.apk>",
		Flags: append(opts.flags(),
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"C"},
				Usage:       "channel config YAML",
				Value:       "channels.yaml",
				Destination: &configFile,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if cmd.NArg() != 1 {
				return fmt.Errorf("batch: expected <base.apk>")
			}
			base := cmd.Args().First()

			cfg, report, err := chanconfig.Load(configFile)
			if report != nil {
				for _, w := range report.Warnings {
					log.Warn("channel config", "file", configFile, "warning", w)
				}
			}
			if err != nil {
				return err
			}

			// Output settings come from flags, then the channel config. The tool
			// config only supplies worker and retry defaults here.
			if !cmd.IsSet("overwrite") {
				opts.overwrite = cfg.Output.OverwriteOrDefault()
			}
			opts.apply(cmd, Config{Workers: g.cfg.Workers, Retries: g.cfg.Retries})

			reqs, err := cfg.Requests(base, opts.outputDir)
			if err != nil {
				return err
			}
			if err := ensureOutputDirs(reqs); err != nil {
				return err
			}
			log.Info("channel config loaded", "file", configFile, "version", cfg.Version, "channels", len(reqs))

			p, err := opts.newPackager(log)
			if err != nil {
				return err
			}
			outcomes, err := p.GenerateFile(ctx, base, reqs)
			if err != nil {
				return err
			}
			return printOutcomes(g.stdout, outcomes, g.jsonOut)
		},
	}
}
