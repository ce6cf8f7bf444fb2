// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/errorsvc"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/output"
)

// widgetable is one row of wq output.
type widgetable struct {
	ID uuid.UUID `json:"id"`
}

// WqCommandAction is the action handler for the "wq" subcommand. It lists the
// ids of the insights that can be used in widgets.
func WqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "wq") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(widgetable{})) {
		return nil
	}

	al, err := BuildAttrs(cmd, "id")
	if err != nil {
		return err
	}

	svcs, errs, err := NewServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ids := svcs.Insights.WidgetableInsightIDs(ctx)
	if len(ids) == 0 {
		if err := lastError(errs); err != nil {
			return err
		}
	}

	rows := make([]widgetable, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, widgetable{ID: id})
	}

	return output.SliceDiceSpit(rows, al, OutputOptions(cmd), writer(cmd))
}

func lastError(errs *errorsvc.Service) error {
	if errs == nil {
		return nil
	}
	return errs.Last()
}

// WqCommandBuilder constructs the cli.Command for "wq".
func WqCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "wq",
		Usage:     "widgetable insight query",
		UsageText: `tdctl wq [options]`,
		Action:    WqCommandAction,
		Meta:      meta,
	}).Build()
}
