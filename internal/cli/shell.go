package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/session"
)

const shellHelp = `Commands:
  store <type> <json>                       Buffer documents (object or array)
  delete <type> <id>...                     Buffer deletes
  save                                      Commit buffered changes in one transaction
  discard                                   Drop buffered changes
  pending                                   Show buffered change counts
  load <type> <id>                          Print a committed document
  query <type> [--order-by expr] [filter]   Raw SQL filter over data
  where <type> [--order-by f] [--limit n] [cond]...
                                            Parameterized field conditions
  types                                     List document types
  schema                                    Print the DDL
  format text|json                          Switch output format
  help                                      Show this help
  exit                                      Leave (buffered changes are discarded)`

var shellCommands = []string{
	"store", "delete", "save", "discard", "pending",
	"load", "query", "where", "types", "schema",
	"format", "help", "exit", "quit",
}

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	History string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session over the store",
		Long: `Open an interactive unit of work. store and delete buffer changes in
the session until save commits them together; load, query and where
read committed documents only.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.History, "history", defaultHistoryFile(), "history file (empty disables history)")

	return cmd
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docstore_history")
}

func runShell(opts *ShellOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.Close()

	sh := newShell(a, f)
	defer sh.close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.complete)

	if opts.History != "" {
		if hf, err := os.Open(opts.History); err == nil {
			line.ReadHistory(hf)
			hf.Close()
		}
	}

	fmt.Fprintf(f.Writer, "docstore shell (%s, %d document type(s)). Type 'help' for commands.\n",
		a.cfg.Driver, len(a.typeNames()))

	for {
		input, err := line.Prompt("docstore> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if sh.exec(ctx, input) {
			break
		}
	}

	if opts.History != "" {
		if hf, err := os.Create(opts.History); err == nil {
			line.WriteHistory(hf)
			hf.Close()
		}
	}
	return nil
}

// shell executes REPL lines against one long-lived session.
type shell struct {
	app     *app
	f       *OutputFormatter
	session *session.Session
}

func newShell(a *app, f *OutputFormatter) *shell {
	return &shell{app: a, f: f, session: a.store.OpenSession()}
}

func (sh *shell) close() {
	if stores, deletes := sh.session.Pending(); stores+deletes > 0 {
		fmt.Fprintf(sh.f.Writer, "Discarding %d pending change(s)\n", stores+deletes)
	}
	sh.session.Close()
}

// exec runs one line and reports whether the shell should exit.
// Errors are reported through the formatter; the shell keeps going.
func (sh *shell) exec(ctx context.Context, input string) bool {
	name, rest := cutWord(input)
	name = strings.ToLower(name)

	var err error
	switch name {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(sh.f.Writer, shellHelp)
	case "store":
		err = sh.store(rest)
	case "delete", "del":
		err = sh.delete(rest)
	case "save":
		err = sh.save(ctx)
	case "discard":
		sh.session.Close()
		sh.session = sh.app.store.OpenSession()
		err = sh.f.Success(map[string]int{"pending": 0}, "Discarded pending changes")
	case "pending":
		stores, deletes := sh.session.Pending()
		err = sh.f.Success(map[string]int{"stores": stores, "deletes": deletes},
			fmt.Sprintf("%d store(s), %d delete(s) pending", stores, deletes))
	case "load", "get":
		err = sh.load(ctx, rest)
	case "query":
		err = sh.query(ctx, rest)
	case "where":
		err = sh.where(ctx, rest)
	case "types":
		names := sh.app.typeNames()
		err = sh.f.Success(names, strings.Join(names, "\n"))
	case "schema":
		script := sh.app.store.Script()
		err = sh.f.Success([]string(script), strings.TrimSuffix(script.String(), "\n"))
	case "format":
		err = sh.setFormat(rest)
	default:
		err = &invalidInput{fmt.Errorf("unknown command %q (type 'help' for commands)", name)}
	}

	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			sh.f.Fail(err)
		}
	}
	return false
}

func (sh *shell) store(rest string) error {
	typeName, body := cutWord(rest)
	if typeName == "" || body == "" {
		return &invalidInput{errors.New("usage: store <type> <json>")}
	}
	ids, err := sh.app.stageDocuments(sh.session, typeName, []byte(body))
	if err != nil {
		return err
	}
	return sh.f.Success(map[string]any{"type": typeName, "ids": ids},
		fmt.Sprintf("Buffered %d %s document(s): %v", len(ids), typeName, ids))
}

func (sh *shell) delete(rest string) error {
	args, err := splitWords(rest)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return &invalidInput{errors.New("usage: delete <type> <id>...")}
	}
	ids := make([]any, 0, len(args)-1)
	for _, text := range args[1:] {
		id, err := sh.app.stageDelete(sh.session, args[0], text)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return sh.f.Success(map[string]any{"type": args[0], "ids": ids},
		fmt.Sprintf("Buffered %d delete(s)", len(ids)))
}

func (sh *shell) save(ctx context.Context) error {
	stores, deletes := sh.session.Pending()
	if err := sh.session.SaveChanges(ctx); err != nil {
		return err
	}
	return sh.f.Success(map[string]int{"stores": stores, "deletes": deletes},
		fmt.Sprintf("Saved %d store(s), %d delete(s)", stores, deletes))
}

func (sh *shell) load(ctx context.Context, rest string) error {
	args, err := splitWords(rest)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return &invalidInput{errors.New("usage: load <type> <id>")}
	}
	doc, err := sh.app.load(ctx, sh.session, args[0], args[1])
	if err != nil {
		return err
	}
	return sh.f.Documents([]*mapping.Raw{doc})
}

func (sh *shell) query(ctx context.Context, rest string) error {
	fs := sh.flagSet("query")
	orderBy := fs.String("order-by", "", "raw ORDER BY expression")
	args, err := parseLine(fs, rest)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return &invalidInput{errors.New("usage: query <type> [--order-by expr] [filter]")}
	}
	docs, err := sh.app.query(ctx, sh.session, args[0], strings.Join(args[1:], " "), *orderBy)
	if err != nil {
		return err
	}
	return sh.f.Documents(docs)
}

func (sh *shell) where(ctx context.Context, rest string) error {
	fs := sh.flagSet("where")
	orderBy := fs.StringSlice("order-by", nil, "fields to order by; prefix - for descending, suffix :number or :bool")
	limit := fs.Int("limit", 0, "maximum number of documents")
	args, err := parseLine(fs, rest)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return &invalidInput{errors.New("usage: where <type> [--order-by f] [--limit n] [cond]...")}
	}
	docs, err := sh.app.where(ctx, sh.session, args[0], args[1:], *orderBy, *limit)
	if err != nil {
		return err
	}
	return sh.f.Documents(docs)
}

func (sh *shell) setFormat(rest string) error {
	format := strings.TrimSpace(rest)
	if format != "text" && format != "json" {
		return &invalidInput{fmt.Errorf("invalid format %q: must be one of %v", format, ValidFormats)}
	}
	sh.f.Format = format
	return nil
}

func (sh *shell) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (sh *shell) complete(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	for _, c := range shellCommands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	// Second word: document type names.
	if name, rest := cutWord(line); rest != "" || strings.HasSuffix(line, " ") {
		for _, t := range sh.app.typeNames() {
			if strings.HasPrefix(t, rest) {
				out = append(out, name+" "+t)
			}
		}
	}
	return out
}

// parseLine splits rest into words and parses flags, returning the
// positional arguments.
func parseLine(fs *pflag.FlagSet, rest string) ([]string, error) {
	words, err := splitWords(rest)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(words); err != nil {
		return nil, &invalidInput{err}
	}
	return fs.Args(), nil
}

// cutWord splits off the first whitespace-delimited word.
func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// splitWords splits on whitespace. Double quotes group words and are
// removed, with \" and \\ escapes inside them. Single quotes are kept as
// ordinary characters so SQL string literals pass through.
func splitWords(s string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		inQuote bool
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote && r == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			i++
			cur.WriteRune(runes[i])
		case r == '"':
			inQuote = !inQuote
			inWord = true
		case !inQuote && (r == ' ' || r == '\t'):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inQuote {
		return nil, &invalidInput{errors.New("unterminated double quote")}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
