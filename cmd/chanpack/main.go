package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chanpack/internal/logger"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	g := &globals{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:      "chanpack",
		Usage:     "Write and read distribution channel metadata in signed APKs",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     g.flags(),
		Before:    g.before,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			putCmd(g),
			batchCmd(g),
			getCmd(g),
			inspectCmd(g),
			validateCmd(g),
			serveCmd(g),
			versionCmd(g),
		},
	}
}

// before loads the tool config and installs the logger.
func (g *globals) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	g.cfg = LoadConfig()
	if g.cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		g.logLevel = g.cfg.LogLevel
	}
	if g.cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		g.logFormat = g.cfg.LogFormat
	}

	level, err := logger.ParseLevel(g.logLevel)
	if err != nil {
		return ctx, err
	}
	if g.debug {
		level = slog.LevelDebug
	}
	log, err := logger.New(g.logFormat, level, g.stderr)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}
