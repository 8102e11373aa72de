package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/roach88/docstore/internal/catalog"
	"github.com/roach88/docstore/internal/config"
	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/queryir"
	"github.com/roach88/docstore/internal/querysql"
	"github.com/roach88/docstore/internal/session"
	"github.com/roach88/docstore/internal/store"
)

// errNotFound marks a load of an id with no stored document.
var errNotFound = errors.New("document not found")

// resolveConfig loads the config file, if any, and applies flag overrides.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.DSN = opts.DSN
	}
	if opts.Documents != "" {
		cfg.Documents = opts.Documents
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to w at the configured level, or debug when verbose.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// registerCatalog declares the configured document types on reg.
func registerCatalog(cfg *config.Config, reg *mapping.Registry) error {
	if cfg.Documents == "" {
		return nil
	}
	cat, err := catalog.Load(cfg.Documents)
	if err != nil {
		return err
	}
	return cat.RegisterAll(reg)
}

// offlineRegistry builds the registry for cfg without touching the database.
func offlineRegistry(cfg *config.Config) (*mapping.Registry, error) {
	d, err := dialect.ForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	reg := mapping.NewRegistry(d)
	if err := registerCatalog(cfg, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// app is an opened store plus the settings it was opened with.
type app struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// openApp resolves configuration, opens the store, registers the catalog
// and, when configured, applies the schema. Failures are reported through f.
func openApp(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*app, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, f.FailWith(ErrCodeConfig, ExitCommandError, err)
	}
	logger := newLogger(opts, cfg, f.GetErrWriter())

	st, err := store.Open(cfg.Driver, cfg.DSN, store.WithLogger(logger))
	if err != nil {
		return nil, f.FailWith(ErrCodeOpenFailed, ExitCommandError, err)
	}
	if err := registerCatalog(cfg, st.Registry()); err != nil {
		st.Close()
		return nil, f.FailWith(ErrCodeCatalog, ExitCommandError, err)
	}
	if cfg.AutoCreateSchema {
		if err := st.ApplySchema(ctx); err != nil {
			st.Close()
			return nil, f.Fail(err)
		}
	}

	f.VerboseLog("Opened %s store %s with %d document type(s)", cfg.Driver, cfg.DSN, len(st.Registry().Types()))
	return &app{cfg: cfg, store: st, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) storage(typeName string) (*mapping.DocumentStorage, error) {
	return a.store.Registry().StorageForName(typeName)
}

// typeNames lists registered types in registration order.
func (a *app) typeNames() []string {
	var names []string
	for _, dt := range a.store.Registry().Types() {
		names = append(names, dt.Name)
	}
	return names
}

// stageDocuments decodes a JSON object or array of objects (comments and
// trailing commas allowed) and buffers each as a raw document on s. It
// returns the identities, including ones assigned on Store.
func (a *app) stageDocuments(s *session.Session, typeName string, input []byte) ([]any, error) {
	storage, err := a.storage(typeName)
	if err != nil {
		return nil, err
	}

	bodies, err := decodeDocuments(input)
	if err != nil {
		return nil, err
	}

	// Every document is checked before any is buffered.
	dt := storage.DocumentType()
	docs := make([]any, 0, len(bodies))
	ids := make([]any, 0, len(bodies))
	for _, body := range bodies {
		doc := mapping.NewRaw(dt.Name, body)
		dt.AssignIdentity(doc)
		id, err := dt.Identity(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, id)
	}
	if err := s.Store(docs...); err != nil {
		return nil, err
	}
	return ids, nil
}

// stageDelete buffers deletion of the document with the id text.
func (a *app) stageDelete(s *session.Session, typeName, idText string) (any, error) {
	storage, err := a.storage(typeName)
	if err != nil {
		return nil, err
	}
	id, err := storage.DocumentType().ParseID(idText)
	if err != nil {
		return nil, err
	}
	if err := s.DeleteRaw(typeName, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (a *app) load(ctx context.Context, s *session.Session, typeName, idText string) (*mapping.Raw, error) {
	storage, err := a.storage(typeName)
	if err != nil {
		return nil, err
	}
	id, err := storage.DocumentType().ParseID(idText)
	if err != nil {
		return nil, err
	}
	doc, err := s.LoadRaw(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s %s: %w", typeName, idText, errNotFound)
	}
	return doc, nil
}

// query runs a trusted raw filter against a type's table.
func (a *app) query(ctx context.Context, s *session.Session, typeName, filter, orderBy string) ([]*mapping.Raw, error) {
	storage, err := a.storage(typeName)
	if err != nil {
		return nil, err
	}
	return s.QueryRaw(ctx, typeName, querysql.BuildSelect(storage, filter, orderBy))
}

// where runs a parameterized query built from field conditions such as
// "Age>=30". orderBy terms are parsed by queryir.ParseOrder: "-" sorts
// descending and a ":number" suffix sorts numerically on every dialect.
func (a *app) where(ctx context.Context, s *session.Session, typeName string, conditions, orderBy []string, limit int) ([]*mapping.Raw, error) {
	storage, err := a.storage(typeName)
	if err != nil {
		return nil, err
	}

	sel := queryir.Select{Limit: limit}
	if len(conditions) > 0 {
		and := queryir.And{}
		for _, cond := range conditions {
			pred, err := parseCondition(cond)
			if err != nil {
				return nil, err
			}
			and.Predicates = append(and.Predicates, pred)
		}
		sel.Filter = and
	}
	for _, term := range orderBy {
		o, err := queryir.ParseOrder(term)
		if err != nil {
			return nil, &invalidInput{err}
		}
		sel.OrderBy = append(sel.OrderBy, o)
	}

	text, err := querysql.NewCompiler().Compile(storage, sel)
	if err != nil {
		return nil, &invalidInput{err}
	}
	a.logger.Debug("compiled query", "sql", text.SQL, "args", len(text.Args))
	return s.QueryRaw(ctx, typeName, text)
}

// invalidInput marks errors caused by malformed user input.
type invalidInput struct{ err error }

func (e *invalidInput) Error() string { return e.err.Error() }
func (e *invalidInput) Unwrap() error { return e.err }

func decodeDocuments(input []byte) ([]map[string]any, error) {
	standardized, err := hujson.Standardize(input)
	if err != nil {
		return nil, &invalidInput{fmt.Errorf("invalid JSON: %w", err)}
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &invalidInput{fmt.Errorf("invalid JSON: %w", err)}
	}

	switch v := v.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		bodies := make([]map[string]any, 0, len(v))
		for i, item := range v {
			body, ok := item.(map[string]any)
			if !ok {
				return nil, &invalidInput{fmt.Errorf("document %d is not a JSON object", i)}
			}
			bodies = append(bodies, body)
		}
		return bodies, nil
	default:
		return nil, &invalidInput{fmt.Errorf("expected a JSON object or an array of objects")}
	}
}

// conditionOps is ordered so two-character operators match first.
var conditionOps = []struct {
	text string
	op   queryir.Op
}{
	{">=", queryir.OpGe},
	{"<=", queryir.OpLe},
	{"!=", queryir.OpNe},
	{"=", queryir.OpEq},
	{">", queryir.OpGt},
	{"<", queryir.OpLt},
}

// parseCondition turns "field<op>value" into a predicate. "field=null"
// matches missing or null fields.
func parseCondition(cond string) (queryir.Predicate, error) {
	for _, c := range conditionOps {
		field, raw, ok := strings.Cut(cond, c.text)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		value := parseValue(strings.TrimSpace(raw))
		if c.op == queryir.OpEq {
			return queryir.Equals{Field: field, Value: value}, nil
		}
		if value == nil {
			if c.op == queryir.OpNe {
				return queryir.Not{Predicate: queryir.IsNull{Field: field}}, nil
			}
			return nil, &invalidInput{fmt.Errorf("condition %q: null only supports = and !=", cond)}
		}
		return queryir.Compare{Field: field, Op: c.op, Value: value}, nil
	}
	return nil, &invalidInput{fmt.Errorf("condition %q: expected field<op>value with op one of = != < <= > >=", cond)}
}

// parseValue reads a condition literal: null, true, false, an integer,
// a float, a double-quoted string, or otherwise the bare text.
func parseValue(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if unquoted, err := strconv.Unquote(s); err == nil && strings.HasPrefix(s, `"`) {
		return unquoted
	}
	return s
}
