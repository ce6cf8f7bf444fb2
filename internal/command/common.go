// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"reflect"

	"github.com/apex/log"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/tdctl/internal/api"
	"github.com/staranto/tdctl/internal/attrs"
	"github.com/staranto/tdctl/internal/config"
	"github.com/staranto/tdctl/internal/coordinator"
	"github.com/staranto/tdctl/internal/errorsvc"
	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/meta"
	"github.com/staranto/tdctl/internal/output"
	"github.com/staranto/tdctl/internal/service"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr tdctl <subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "tdctl", subcmd)
			c.Stdout = writer(cmd)
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// DumpSchemaIfRequested prints the schema for the provided type when
// --schema is set, and returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") {
		output.DumpSchema(writer(cmd), t)
		return true
	}
	return false
}

// BuildAttrs constructs an AttrList with defaults and optional extras from
// --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList, err error) {
	for _, d := range defaults {
		if err = al.Set(d); err != nil {
			return
		}
	}
	if extras := cmd.String("attrs"); extras != "" {
		if err = al.Set(extras); err != nil {
			return
		}
	}
	err = al.SetGlobalTransformSpec()
	return
}

// OutputOptions collects the presentation flags of cmd.
func OutputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
	}
}

// Emit passes results to the common output routine.
func Emit(cmd *cli.Command, results any, al attrs.AttrList) error {
	return output.SliceDiceSpit(results, al, OutputOptions(cmd), writer(cmd))
}

// writer is where command output goes. Tests replace the root Writer.
func writer(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.ErrWriter != nil {
		return root.ErrWriter
	}
	return os.Stderr
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// NewServices connects to the host selected by cmd's flags and returns the
// entity classes of that host along with the error service they report to.
// The caller must Close the returned Services.
func NewServices(ctx context.Context, cmd *cli.Command) (*service.Services, *errorsvc.Service, error) {
	host := cmd.String("host")

	token := cmd.String("token")
	if token == "" {
		configured, _ := config.GetString("token", "")
		token = api.Token(host, configured)
	}

	ua := "tdctl"
	if v := GetMeta(cmd).Version; v != "" {
		ua += "/" + v
	}

	client, err := api.NewClient(host, token, api.WithUserAgent(ua))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client for %s: %w", host, err)
	}
	log.Debugf("client: %s", client.URLForPath(api.V1))

	ew := errWriter(cmd)
	errs := errorsvc.New(errorsvc.OnUnauthorized(func(error) {
		fmt.Fprintf(ew, "The token for %s was rejected. Set TDCTL_TOKEN or --token.\n", host)
	}))

	cfg := service.ConfigFromFile()
	cfg.FetchTimeout = cmd.Duration("timeout")

	svcs := service.New(ctx, client,
		service.WithConfig(cfg),
		service.WithReporter(errs),
	)

	return svcs, errs, nil
}

// awaitAll requests every key of c, waits for all of them to settle and
// returns the values in key order. Keys that failed to load are collected
// into one error; the values of the other keys are still returned.
func awaitAll[K comparable, V any](ctx context.Context, c *coordinator.Coordinator[K, V], keys []K) ([]V, error) {
	for _, k := range keys {
		c.Request(k)
	}

	states := make([]loadstate.State, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		g.Go(func() (err error) {
			states[i], err = c.Await(gctx, k)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		values []V
		merr   *multierror.Error
	)
	for i, k := range keys {
		if s, ok := states[i].(loadstate.Error); ok {
			merr = multierror.Append(merr, fmt.Errorf("%s %v: %s", c.Name(), k, s.Message))
			continue
		}
		if e, ok := c.Peek(k); ok {
			values = append(values, e.Value)
		}
	}

	return values, merr.ErrorOrNil()
}

// QueryCommandBuilder is a helper that constructs a cli.Command for the
// subcommands using a consistent pattern. The builder wires metadata, adds
// tldr/schema flags, applies global flags, and sets up validators.
type QueryCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (qcb *QueryCommandBuilder) Build() *cli.Command {
	return &cli.Command{
		Name:      qcb.Name,
		Usage:     qcb.Usage,
		UsageText: qcb.UsageText,
		Metadata: map[string]any{
			"meta": qcb.Meta,
		},
		Flags: append(qcb.Flags, append([]cli.Flag{
			tldrFlag,
			schemaFlag,
		}, NewGlobalFlags(qcb.Name)...)...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: qcb.Action,
	}
}

// QueryActionRunner[T] encapsulates the common query action pattern. It
// handles the short-circuit checks, attrs and output emission, with data
// fetching provided by FetchFn.
type QueryActionRunner[T any] struct {
	CommandName  string
	SchemaType   reflect.Type
	DefaultAttrs []string
	FetchFn      func(context.Context, *cli.Command, *service.Services) ([]T, error)
}

// Run executes the query action with the provided context and command.
func (qar *QueryActionRunner[T]) Run(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	if len(m.Args) > 1 {
		log.Debugf("Executing action for %v", m.Args[1:])
	}

	if ShortCircuitTLDR(ctx, cmd, qar.CommandName) {
		return nil
	}
	if DumpSchemaIfRequested(cmd, qar.SchemaType) {
		return nil
	}

	al, err := BuildAttrs(cmd, qar.DefaultAttrs...)
	if err != nil {
		return err
	}
	log.Debugf("attrs: %v", al.String())

	svcs, _, err := NewServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svcs.Close()

	results, err := qar.FetchFn(ctx, cmd, svcs)
	if results == nil {
		if err != nil {
			return err
		}
		results = []T{}
	}

	if emitErr := Emit(cmd, results, al); emitErr != nil {
		return emitErr
	}
	return err
}
