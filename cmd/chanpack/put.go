package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/chanconfig"
	"github.com/samcharles93/chanpack/internal/logger"
	"github.com/samcharles93/chanpack/internal/packager"
	"github.com/samcharles93/chanpack/pkg/payload"
)

func putCmd(g *globals) *cli.Command {
	var (
		opts     packOptions
		channels []string
		extras   []string
		market   string
	)

	return &cli.Command{
		Name:      "put",
		Usage:     "Write one or more channels into copies of a signed APK",
		ArgsUsage: "<base.apk> [output.apk]",
		Flags: append(opts.flags(),
			&cli.StringSliceFlag{
				Name:        "channel",
				Aliases:     []string{"c"},
				Usage:       "channel ID (repeat or comma-separate for several)",
				Required:    true,
				Destination: &channels,
			},
			&cli.StringSliceFlag{
				Name:        "extra",
				Aliases:     []string{"e"},
				Usage:       "extra metadata as KEY=VALUE",
				Destination: &extras,
			},
			&cli.StringFlag{
				Name:        "market",
				Usage:       "market name (default: built-in store name for the channel)",
				Destination: &market,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			opts.apply(cmd, g.cfg)

			args := cmd.Args().Slice()
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("put: expected <base.apk> [output.apk]")
			}
			base := args[0]
			ids := splitList(channels)
			if len(args) == 2 && len(ids) != 1 {
				return fmt.Errorf("put: an explicit output path takes exactly one channel")
			}

			reqs := make([]packager.Request, 0, len(ids))
			for _, id := range ids {
				m, err := putMetadata(id, market, extras)
				if err != nil {
					return err
				}
				out := ""
				if len(args) == 2 {
					out = args[1]
				} else {
					dir := opts.outputDir
					if dir == "" {
						dir = filepath.Dir(base)
					}
					out = filepath.Join(dir, chanconfig.OutputName(base, id))
				}
				reqs = append(reqs, packager.Request{Metadata: m, Output: out})
			}
			if err := ensureOutputDirs(reqs); err != nil {
				return err
			}

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

func putMetadata(id, market string, extras []string) (*payload.Metadata, error) {
	m, err := payload.New(id)
	if err != nil {
		return nil, err
	}
	for _, kv := range extras {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("extra %q: want KEY=VALUE", kv)
		}
		if err := m.Set(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return nil, err
		}
	}
	if _, ok := m.Get(payload.KeyMarketName); !ok {
		if market == "" {
			market = chanconfig.DefaultMarketName(id)
		}
		if err := m.Set(payload.KeyMarketName, market); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func ensureOutputDirs(reqs []packager.Request) error {
	for _, r := range reqs {
		if err := os.MkdirAll(filepath.Dir(r.Output), 0o755); err != nil {
			return err
		}
	}
	return nil
}
