package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/version"
)

func versionCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			if g.jsonOut {
				return printJSON(g.stdout, info)
			}
			_, _ = fmt.Fprintf(g.stdout, "version:    %s\n", info.Version)
			if info.Commit != "" {
				_, _ = fmt.Fprintf(g.stdout, "commit:     %s\n", info.Commit)
			}
			if info.BuildTime != "" {
				_, _ = fmt.Fprintf(g.stdout, "build time: %s\n", info.BuildTime)
			}
			_, _ = fmt.Fprintf(g.stdout, "go:         %s\n", info.GoVersion)
			return nil
		},
	}
}
