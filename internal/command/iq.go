// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/staranto/tdctl/internal/config"
	"github.com/staranto/tdctl/internal/dashboard"
	"github.com/staranto/tdctl/internal/dto"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/service"
)

var ErrNotTerminal = errors.New("--watch requires a terminal")

// IqCommandAction is the action handler for the "iq" subcommand. It loads the
// insights named by the args, or keeps them on screen with --watch.
func IqCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("watch") && !cmd.Bool("tldr") && !cmd.Bool("schema") {
		return iqWatch(ctx, cmd)
	}

	runner := &QueryActionRunner[dto.Insight]{
		CommandName:  "iq",
		SchemaType:   reflect.TypeOf(dto.Insight{}),
		DefaultAttrs: []string{"id", "title", "type", "lastRunAt:lastRun"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, svcs *service.Services) ([]dto.Insight, error) {
			ids, err := ParseIDs(cmd)
			if err != nil {
				return nil, err
			}
			return awaitAll(ctx, svcs.Insights.Coordinator, ids)
		},
	}
	return runner.Run(ctx, cmd)
}

func iqWatch(ctx context.Context, cmd *cli.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}

	ids, err := ParseIDs(cmd)
	if err != nil {
		return err
	}

	svcs, _, err := NewServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svcs.Close()

	debounce, err := config.GetDuration("notify.debounce", 100*time.Millisecond)
	if err != nil {
		log.WithError(err).Warn("ignoring notify.debounce")
		debounce = 100 * time.Millisecond
	}

	return dashboard.Run(ctx, dashboard.Options{
		Title:    fmt.Sprintf("%d insight(s) on %s", len(ids), cmd.String("host")),
		Source:   insightRows(svcs.Insights, ids),
		Refresh:  func() { refreshAll(svcs.Insights, ids) },
		Interval: cmd.Duration("interval"),
		Debounce: debounce,
	}, svcs.Insights.Subscribe)
}

// insightRows requests every id on each frame and reports what the cache
// holds for it.
func insightRows(s *service.Insights, ids []uuid.UUID) dashboard.Source {
	return func() []dashboard.Row {
		rows := make([]dashboard.Row, 0, len(ids))
		for _, id := range ids {
			row := dashboard.Row{Label: id.String()}
			insight, ok := s.Request(id)
			row.State = s.EffectiveState(id)
			if ok {
				row.HasValue = true
				row.Content = fmt.Sprintf("%s (%s)", insight.Title, insight.Type)
				if e, found := s.Peek(id); found {
					row.UpdatedAt = e.StoredAt
				}
			}
			rows = append(rows, row)
		}
		return rows
	}
}

func refreshAll(s *service.Insights, ids []uuid.UUID) {
	for _, id := range ids {
		s.Refresh(id)
	}
}

// IqCommandBuilder constructs the cli.Command for "iq".
func IqCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "iq",
		Usage:     "insight query",
		UsageText: `tdctl iq <id>... [options]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "keep the insights on screen and refetch them when stale",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "how often --watch redraws",
				Value: time.Second,
			},
		},
		Action: IqCommandAction,
		Meta:   meta,
	}).Build()
}
