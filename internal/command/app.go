// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
package command

import (
	"context"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/config"
	"github.com/staranto/tdctl/internal/meta"
)

func InitApp(ctx context.Context, args []string, version string) (*cli.Command, error) {
	// The arg[1] immediately following the binary (arg[0]) is the tdctl
	// subcommand and also represents the namespace key to be used when retrieving
	// config values. arg[1] could be -h/--help, so ignore it if it appears to be
	// a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, _ := config.Load(ns)
	meta := meta.Meta{
		Args:    args,
		Config:  cfg,
		Context: ctx,
		Version: version,
	}

	app := &cli.Command{
		Name:  "tdctl",
		Usage: "TelemetryDeck Control",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "tdctl version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		BqCommandBuilder(meta),
		IcCommandBuilder(meta),
		IqCommandBuilder(meta),
		IrCommandBuilder(meta),
		IuCommandBuilder(meta),
		OqCommandBuilder(meta),
		WqCommandBuilder(meta),
		CompletionCommandBuilder(meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
