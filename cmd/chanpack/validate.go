package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/chanconfig"
)

func validateCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a channel config file",
		ArgsUsage: "<channels.yaml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("validate: expected <channels.yaml>")
			}
			path := cmd.Args().First()
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			report := chanconfig.Validate(data)
			if g.jsonOut {
				if err := printJSON(g.stdout, struct {
					Path  string `json:"path"`
					Valid bool   `json:"valid"`
					*chanconfig.Report
				}{path, report.Valid(), report}); err != nil {
					return err
				}
			} else {
				for _, e := range report.Errors {
					_, _ = fmt.Fprintf(g.stdout, "error:   %s\n", e)
				}
				for _, w := range report.Warnings {
					_, _ = fmt.Fprintf(g.stdout, "warning: %s\n", w)
				}
				if report.Valid() {
					_, _ = fmt.Fprintf(g.stdout, "%s: valid\n", path)
				}
			}

			if !report.Valid() {
				return fmt.Errorf("%s: %d errors", path, len(report.Errors))
			}
			return nil
		},
	}
}
