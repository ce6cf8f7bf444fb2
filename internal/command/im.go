// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/dto"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/service"
)

var ErrMissingFile = errors.New("--file is required")

// IcCommandAction creates an insight from --file and prints it as the server
// returns it.
func IcCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner[dto.Insight]{
		CommandName:  "ic",
		SchemaType:   reflect.TypeOf(dto.Insight{}),
		DefaultAttrs: []string{"id", "title", "type"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, svcs *service.Services) ([]dto.Insight, error) {
			insight, err := readInsight(cmd)
			if err != nil {
				return nil, err
			}

			id, err := svcs.Insights.Create(ctx, insight)
			if err != nil {
				return nil, fmt.Errorf("failed to create insight: %w", err)
			}
			log.Debugf("created insight %s", id)

			return awaitAll(ctx, svcs.Insights.Coordinator, []uuid.UUID{id})
		},
	}
	return runner.Run(ctx, cmd)
}

// IuCommandAction replaces the insight named by the single arg with the
// content of --file.
func IuCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner[dto.Insight]{
		CommandName:  "iu",
		SchemaType:   reflect.TypeOf(dto.Insight{}),
		DefaultAttrs: []string{"id", "title", "type"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, svcs *service.Services) ([]dto.Insight, error) {
			ids, err := ParseIDs(cmd)
			if err != nil {
				return nil, err
			}
			if len(ids) != 1 {
				return nil, fmt.Errorf("exactly one id is required, got %d", len(ids))
			}

			insight, err := readInsight(cmd)
			if err != nil {
				return nil, err
			}
			insight.ID = ids[0]

			if _, err := svcs.Insights.Update(ctx, ids[0], insight); err != nil {
				return nil, fmt.Errorf("failed to update insight %s: %w", ids[0], err)
			}

			return awaitAll(ctx, svcs.Insights.Coordinator, ids)
		},
	}
	return runner.Run(ctx, cmd)
}

// IrCommandAction deletes every insight named by the args. Failures do not
// stop the remaining deletions.
func IrCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "ir") {
		return nil
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

	var merr *multierror.Error
	w := writer(cmd)
	for _, id := range ids {
		if err := svcs.Insights.Delete(ctx, id); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("failed to delete insight %s: %w", id, err))
			continue
		}
		fmt.Fprintf(w, "deleted %s\n", id)
	}

	return merr.ErrorOrNil()
}

// readInsight decodes --file, or the command's reader when it is "-".
func readInsight(cmd *cli.Command) (insight dto.Insight, err error) {
	path := cmd.String("file")
	if path == "" {
		return insight, ErrMissingFile
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
		if root := cmd.Root(); root != nil && root.Reader != nil {
			r = root.Reader
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return insight, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&insight); err != nil {
		return insight, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return insight, nil
}

func fileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:      "file",
		Aliases:   []string{"F"},
		Usage:     "JSON document of the insight, - for stdin",
		TakesFile: true,
	}
}

// IcCommandBuilder constructs the cli.Command for "ic".
func IcCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "ic",
		Usage:     "insight create",
		UsageText: `tdctl ic --file <path> [options]`,
		Flags:     []cli.Flag{fileFlag()},
		Action:    IcCommandAction,
		Meta:      meta,
	}).Build()
}

// IuCommandBuilder constructs the cli.Command for "iu".
func IuCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "iu",
		Usage:     "insight update",
		UsageText: `tdctl iu <id> --file <path> [options]`,
		Flags:     []cli.Flag{fileFlag()},
		Action:    IuCommandAction,
		Meta:      meta,
	}).Build()
}

// IrCommandBuilder constructs the cli.Command for "ir".
func IrCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "ir",
		Usage:     "insight remove",
		UsageText: `tdctl ir <id>... [options]`,
		Action:    IrCommandAction,
		Meta:      meta,
	}).Build()
}
