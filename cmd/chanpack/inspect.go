package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/pkg/channel"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

func inspectCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the zip and signing block layout of a package",
		ArgsUsage: "<package.apk>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("inspect: expected <package.apk>")
			}
			path := cmd.Args().First()

			f, err := zipindex.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			l, err := channel.Analyze(f.Data)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(g.stdout, l)
			}
			printLayout(g.stdout, path, l)
			return nil
		},
	}
}
