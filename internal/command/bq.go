// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/dto"
	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/service"
)

// Values accepted by --status.
const (
	StatusAll         = "all"
	StatusUnfulfilled = "unfulfilled"
	StatusSent        = "sent"
	StatusFulfilled   = "fulfilled"
)

var (
	ErrTooManyActions = errors.New("only one of --fulfill, --unfulfill, --send-email and --delete may be given")
	ErrNotFound       = errors.New("no such beta request")
)

// bqActions are the flags that change a beta request, in the order they are
// checked.
var bqActions = []string{"fulfill", "unfulfill", "send-email", "delete"}

// BqCommandAction is the action handler for the "bq" subcommand. It lists
// beta requests and optionally changes one of them first.
func BqCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner[dto.BetaRequest]{
		CommandName:  "bq",
		SchemaType:   reflect.TypeOf(dto.BetaRequest{}),
		DefaultAttrs: []string{"id", "email", "requestedAt:requested", "sentAt:sent", "isFulfilled:fulfilled"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, svcs *service.Services) ([]dto.BetaRequest, error) {
			br := svcs.BetaRequests

			if err := loadBetaRequests(ctx, br); err != nil {
				return nil, err
			}

			changed, err := applyBetaAction(ctx, cmd, br)
			if err != nil {
				return nil, err
			}
			if changed {
				if err := loadBetaRequests(ctx, br); err != nil {
					return nil, err
				}
			}

			list, _ := br.List()
			unfulfilled, sent, fulfilled := service.Partition(list)
			fmt.Fprintf(errWriter(cmd), "%d unfulfilled, %d email sent, %d fulfilled\n",
				len(unfulfilled), len(sent), len(fulfilled))

			switch cmd.String("status") {
			case StatusUnfulfilled:
				return nonNil(unfulfilled), nil
			case StatusSent:
				return nonNil(sent), nil
			case StatusFulfilled:
				return nonNil(fulfilled), nil
			}
			return nonNil(list), nil
		},
	}
	return runner.Run(ctx, cmd)
}

// loadBetaRequests requests the list and waits for it to settle.
func loadBetaRequests(ctx context.Context, br *service.BetaRequests) error {
	br.List()
	s, err := br.Await(ctx)
	if err != nil {
		return err
	}
	if e, ok := s.(loadstate.Error); ok {
		return fmt.Errorf("failed to load beta requests: %s", e.Message)
	}
	return nil
}

// applyBetaAction runs the action flag given on cmd, if any, and reports
// whether something was changed.
func applyBetaAction(ctx context.Context, cmd *cli.Command, br *service.BetaRequests) (bool, error) {
	var action string
	for _, a := range bqActions {
		if cmd.String(a) == "" {
			continue
		}
		if action != "" {
			return false, ErrTooManyActions
		}
		action = a
	}
	if action == "" {
		return false, nil
	}

	id, err := uuid.Parse(cmd.String(action))
	if err != nil {
		return false, fmt.Errorf("--%s: %w", action, err)
	}

	switch action {
	case "send-email":
		return true, br.SendEmail(ctx, id)
	case "delete":
		return true, br.Delete(ctx, id)
	}

	r, ok := br.Find(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	want := action == "fulfill"
	if r.IsFulfilled == want {
		return false, nil
	}
	return true, br.Update(ctx, id, r.Toggled())
}

func nonNil(rs []dto.BetaRequest) []dto.BetaRequest {
	if rs == nil {
		return []dto.BetaRequest{}
	}
	return rs
}

func idFlag(name, usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  name,
		Usage: usage,
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator, UUIDValidator)
		},
	}
}

// BqCommandBuilder constructs the cli.Command for "bq".
func BqCommandBuilder(meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "bq",
		Usage:     "beta request query",
		UsageText: `tdctl bq [--fulfill|--unfulfill|--send-email|--delete <id>] [options]`,
		Flags: []cli.Flag{
			idFlag("fulfill", "mark request <id> as fulfilled"),
			idFlag("unfulfill", "mark request <id> as not fulfilled"),
			idFlag("send-email", "send the invitation email for request <id>"),
			idFlag("delete", "delete request <id>"),
			&cli.StringFlag{
				Name:  "status",
				Usage: "only show requests that are unfulfilled, sent or fulfilled",
				Value: StatusAll,
				Validator: func(value string) error {
					switch value {
					case StatusAll, StatusUnfulfilled, StatusSent, StatusFulfilled:
						return nil
					}
					return fmt.Errorf("must be one of %v",
						[]string{StatusAll, StatusUnfulfilled, StatusSent, StatusFulfilled})
				},
			},
		},
		Action: BqCommandAction,
		Meta:   meta,
	}).Build()
}
