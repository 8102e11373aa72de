package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/schema"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Output string
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Dialect    string   `json:"dialect"`
	Statements []string `json:"statements"`
	Path       string   `json:"path,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL for the declared document types",
		Long: `Print the tables and upsert routines derived from the document catalog,
tables first. The database is not touched.

Examples:
  docstore schema -d documents.cue
  docstore schema -d documents.cue --driver pgx -o schema.sql`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the script to this file instead of stdout")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions)
	if err != nil {
		return f.FailWith(ErrCodeConfig, ExitCommandError, err)
	}
	reg, err := offlineRegistry(cfg)
	if err != nil {
		return f.Fail(err)
	}

	script := schema.ForRegistry(reg)
	result := SchemaResult{Dialect: reg.Dialect().Name(), Statements: script}
	if result.Statements == nil {
		result.Statements = []string{}
	}

	if opts.Output == "" {
		return f.Success(result, strings.TrimSuffix(script.String(), "\n"))
	}

	if err := atomic.WriteFile(opts.Output, strings.NewReader(script.String())); err != nil {
		return f.FailWith(ErrCodeWriteFailed, ExitCommandError, fmt.Errorf("write %s: %w", opts.Output, err))
	}
	result.Path = opts.Output
	return f.Success(result, fmt.Sprintf("Wrote %d statement(s) to %s", len(script), opts.Output))
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create the tables and upsert routines in the database",
		Long: `Apply the schema for every declared document type. Safe to run
repeatedly: tables are created if missing and routines are replaced.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, cmd)
		},
	}
}

func runApply(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd)

	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	// Already applied when auto_create_schema is on; applying again is harmless.
	if err := a.store.ApplySchema(ctx); err != nil {
		return f.Fail(err)
	}

	names := a.typeNames()
	if names == nil {
		names = []string{}
	}
	return f.Success(map[string]any{"types": names},
		fmt.Sprintf("Applied schema for %d document type(s)", len(names)))
}
