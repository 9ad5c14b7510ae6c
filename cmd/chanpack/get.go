package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/pkg/channel"
)

func getCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the channel metadata of packages",
		ArgsUsage: "<package.apk>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return fmt.Errorf("get: expected at least one package")
			}

			cache := channel.NewCache()
			views := make([]channelView, 0, len(paths))
			missing := 0
			for _, p := range paths {
				e, err := cache.Get(p)
				if err != nil {
					return err
				}
				v := channelView{Path: p, Found: e.Found()}
				if e.Found() {
					v.Source = e.Result.Source.String()
					v.Entry = e.Result.Entry
					v.Metadata = e.Result.Metadata.Map()
				} else {
					v.Error = e.Err.Error()
					missing++
				}
				views = append(views, v)
			}

			if g.jsonOut {
				if err := printJSON(g.stdout, views); err != nil {
					return err
				}
			} else {
				for _, v := range views {
					printChannel(g.stdout, v)
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d packages carry no readable channel", missing, len(paths))
			}
			return nil
		},
	}
}
