package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/mapping"
)

// NewStoreCommand creates the store command.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "store <type> [file|-]",
		Short: "Upsert documents from a JSON file or stdin",
		Long: `Store one JSON object, or an array of objects, as documents of a type.
Documents with an existing id replace the stored payload. All documents
in the input are written in one transaction.

Comments and trailing commas are accepted. UUID-keyed documents without
an id get one assigned.

Examples:
  docstore store User user.json
  echo '{"id": "a1", "name": "Ada"}' | docstore store Person`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 2 {
				source = args[1]
			}
			return runStore(rootOpts, args[0], source, cmd)
		},
	}
}

func runStore(opts *RootOptions, typeName, source string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd)

	input, err := readInput(source, cmd.InOrStdin())
	if err != nil {
		return f.FailWith(ErrCodeInvalidInput, ExitCommandError, err)
	}

	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.store.OpenSession()
	defer s.Close()

	ids, err := a.stageDocuments(s, typeName, input)
	if err != nil {
		return f.Fail(err)
	}
	if err := s.SaveChanges(ctx); err != nil {
		return f.Fail(err)
	}

	return f.Success(map[string]any{"type": typeName, "ids": ids},
		fmt.Sprintf("Stored %d %s document(s): %v", len(ids), typeName, ids))
}

func readInput(source string, stdin io.Reader) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return data, nil
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <type> <id>",
		Short: "Print the document with the given id",
		Long: `Print the stored document of a type with the given id.
Exits with status 1 when no such document exists.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runLoad(opts *RootOptions, typeName, id string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd)

	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.store.OpenSession()
	defer s.Close()

	doc, err := a.load(ctx, s, typeName, id)
	if err != nil {
		return f.Fail(err)
	}
	if f.Format == "json" {
		return f.Success(doc.Body, "")
	}
	return f.Documents([]*mapping.Raw{doc})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>...",
		Short: "Delete documents by id",
		Long: `Delete documents of a type by id in one transaction.
Deleting an id that does not exist is not an error.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runDelete(opts *RootOptions, typeName string, idTexts []string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd)

	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.store.OpenSession()
	defer s.Close()

	ids := make([]any, 0, len(idTexts))
	for _, text := range idTexts {
		id, err := a.stageDelete(s, typeName, text)
		if err != nil {
			return f.Fail(err)
		}
		ids = append(ids, id)
	}
	if err := s.SaveChanges(ctx); err != nil {
		return f.Fail(err)
	}

	return f.Success(map[string]any{"type": typeName, "ids": ids},
		fmt.Sprintf("Deleted %d %s document(s)", len(ids), typeName))
}
