// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/output"
)

var ErrMissingID = errors.New("at least one id is required")

func GlobalFlagsValidator(ctx context.Context, c *cli.Command) error {
	for _, name := range []string{"attrs", "filter", "sort"} {
		if v := c.String(name); v != "" {
			if err := JammedFlagValidator(v); err != nil {
				return fmt.Errorf("--%s %w", name, err)
			}
		}
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func MustBeTrueValidator(value any) error {
	if !value.(bool) {
		return errors.New("must be true")
	}
	return nil
}

func OutputValidator(value any) error {
	if !slices.Contains(output.Formats, value.(string)) {
		return fmt.Errorf("must be one of %v", output.Formats)
	}
	return nil
}

// UUIDValidator verifies that value parses as a UUID.
func UUIDValidator(value any) error {
	if _, err := uuid.Parse(value.(string)); err != nil {
		return fmt.Errorf("%q is not a valid id: %w", value, err)
	}
	return nil
}

// ParseIDs validates and parses the positional args of cmd. At least one is
// required.
func ParseIDs(cmd *cli.Command) ([]uuid.UUID, error) {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return nil, ErrMissingID
	}

	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		if err := FlagValidators(a, JammedFlagValidator, UUIDValidator); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(a))
	}
	return ids, nil
}
