// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/dto"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/service"
)

// OqCommandAction is the action handler for the "oq" subcommand. It lists
// the organizations known to the admin endpoint.
func OqCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner[dto.OrganizationAdminEntry]{
		CommandName:  "oq",
		SchemaType:   reflect.TypeOf(dto.OrganizationAdminEntry{}),
		DefaultAttrs: []string{"name", "sumSignals:signals:h", "isSuperOrg:super", "foundedAt:founded"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, svcs *service.Services) ([]dto.OrganizationAdminEntry, error) {
			lists, err := awaitAll(ctx, svcs.Organizations.Coordinator, []string{service.AllKey})
			if err != nil || len(lists) == 0 {
				return nil, err
			}
			return lists[0], nil
		},
	}
	return runner.Run(ctx, cmd)
}

// OqCommandBuilder constructs the cli.Command for "oq".
func OqCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "oq",
		Usage:     "organization query",
		UsageText: `tdctl oq [options]`,
		Action:    OqCommandAction,
		Meta:      meta,
	}).Build()
}
