package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	OrderBy string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <type> [filter]",
		Short: "Select documents with a raw SQL filter over the payload",
		Long: `Select documents whose payload matches a SQL filter expression. The
payload column is named data; use the store's JSON operators to reach
into it. The filter is passed to the database as-is, so never build it
from untrusted input. Use 'where' for parameterized queries.

Without a filter every document of the type is returned.

Examples:
  docstore query User "data ->> 'FirstName' = 'Jeremy'"
  docstore query User "data ->> 'Age' > 30" --order-by "data ->> 'LastName'"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], strings.Join(args[1:], " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "raw ORDER BY expression")

	return cmd
}

func runQuery(opts *QueryOptions, typeName, filter string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.store.OpenSession()
	defer s.Close()

	docs, err := a.query(ctx, s, typeName, filter, opts.OrderBy)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("%d document(s) matched", len(docs))
	return f.Documents(docs)
}

// WhereOptions holds flags for the where command.
type WhereOptions struct {
	*RootOptions
	OrderBy []string
	Limit   int
}

// NewWhereCommand creates the where command.
func NewWhereCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WhereOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "where <type> [field<op>value]...",
		Short: "Select documents matching field conditions",
		Long: `Select documents whose fields match every condition. Values are bound
as parameters. Operators: = != < <= > >=. Values are read as null, true,
false, numbers, "quoted strings", or bare text. Dotted fields reach into
nested objects.

Results are ordered by --order-by fields (prefix - for descending), then id.
Fields sort as text unless suffixed with :number or :bool.

Examples:
  docstore where User FirstName=Jeremy
  docstore where User 'Age>=30' Address.City=Austin --order-by=-Age:number --limit 10`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhere(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.OrderBy, "order-by", nil, "fields to order by; prefix - for descending, suffix :number or :bool for typed sorting")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of documents (0 = no limit)")

	return cmd
}

func runWhere(opts *WhereOptions, typeName string, conditions []string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.store.OpenSession()
	defer s.Close()

	docs, err := a.where(ctx, s, typeName, conditions, opts.OrderBy, opts.Limit)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("%d document(s) matched", len(docs))
	return f.Documents(docs)
}
