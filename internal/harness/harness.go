package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/docstore/internal/catalog"
	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/queryir"
	"github.com/roach88/docstore/internal/querysql"
	"github.com/roach88/docstore/internal/session"
	"github.com/roach88/docstore/internal/store"
	"github.com/roach88/docstore/internal/testutil"
)

// Step outcomes recorded in the trace.
const (
	OutcomeOK              = "ok"
	OutcomeNotFound        = "not_found"
	OutcomeUnregistered    = "unregistered"
	OutcomeIdentityMissing = "identity_missing"
	OutcomeSerialization   = "serialization"
	OutcomeExecution       = "execution"
	OutcomeSessionClosed   = "session_closed"
	OutcomeError           = "error"
)

// Harness executes scenario steps against one store.
type Harness struct {
	store    *store.Store
	session  *session.Session
	ids      *testutil.SequentialUUIDs
	compiler *querysql.Compiler
	logger   *slog.Logger
	seq      int64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh SQLite database in a temporary
// directory with the scenario's catalog registered and its schema applied.
// UUIDs assigned on store are sequential (...0001, ...0002) so traces are
// reproducible.
//
// Execution flow:
// 1. Open the store and register the catalog
// 2. Run setup steps in one session and save it
// 3. Run flow steps on a fresh session, checking expect clauses
// 4. Evaluate assertions against the trace and committed state
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "docstore-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open("sqlite3", filepath.Join(dir, "scenario.db"), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	for _, path := range scenario.Catalog {
		cat, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		if err := cat.RegisterAll(st.Registry()); err != nil {
			return nil, fmt.Errorf("register %s: %w", path, err)
		}
	}

	ctx := context.Background()
	if err := st.ApplySchema(ctx); err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		ids:      testutil.NewSequentialUUIDs(),
		compiler: querysql.NewCompiler(),
		logger:   logger,
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) openSession() {
	h.session = h.store.OpenSession(
		session.WithIDGenerator(h.ids.Next),
		session.WithLogger(h.logger),
	)
}

// executeSetup runs setup steps in one session and saves it. Any failure
// aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	if len(setup) == 0 {
		return nil
	}
	h.openSession()
	defer h.session.Close()

	for i, step := range setup {
		event, err := h.execute(ctx, step)
		h.record(result, "setup", &event)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, event.Label(), err)
		}
		if event.Outcome != OutcomeOK {
			return fmt.Errorf("setup step %d (%s): outcome %s", i, event.Label(), event.Outcome)
		}
	}

	if stores, deletes := h.session.Pending(); stores+deletes > 0 {
		event, err := h.execute(ctx, Step{Op: OpSave})
		h.record(result, "setup", &event)
		if err != nil {
			return fmt.Errorf("setup save: %w", err)
		}
	}
	return nil
}

// executeFlow runs flow steps on one session and validates expect clauses.
// Failed expectations are recorded on result; the flow keeps going.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) {
	h.openSession()
	defer h.session.Close()

	for i, step := range flow {
		event, err := h.execute(ctx, step)
		h.record(result, "flow", &event)

		for _, msg := range checkExpect(step, event, err) {
			result.AddError(fmt.Sprintf("flow step %d (%s): %s", i, event.Label(), msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"type", step.Type,
			"outcome", event.Outcome,
		)
	}
}

func (h *Harness) record(result *Result, phase string, event *TraceEvent) {
	h.seq++
	event.Seq = h.seq
	event.Phase = phase
	result.AddEvent(*event)
}

// execute runs one step. The returned error is the session's error, if
// any; its classification is already in the event's outcome.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	event := TraceEvent{Op: step.Op, Type: step.Type}

	var err error
	switch step.Op {
	case OpStore:
		event.IDs, err = h.stage(step)
	case OpDelete:
		event.IDs = step.IDs
		for _, id := range step.IDs {
			if err = h.session.DeleteRaw(step.Type, id); err != nil {
				break
			}
		}
	case OpSave:
		event.Stores, event.Deletes = h.session.Pending()
		err = h.session.SaveChanges(ctx)
	case OpDiscard:
		h.session.Close()
		h.openSession()
	case OpLoad:
		event.IDs = step.IDs
		var doc *mapping.Raw
		doc, err = h.session.LoadRaw(ctx, step.Type, step.IDs[0])
		if err == nil && doc == nil {
			event.Outcome = OutcomeNotFound
			return event, nil
		}
		if doc != nil {
			event.Docs = []map[string]any{doc.Body}
		}
	case OpQuery, OpWhere:
		var docs []*mapping.Raw
		docs, err = h.read(ctx, step)
		event.Docs = make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			event.Docs = append(event.Docs, d.Body)
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	event.Outcome = outcomeOf(err)
	return event, err
}

// stage buffers the step's documents and returns their identities, nil
// where a document has none yet.
func (h *Harness) stage(step Step) ([]any, error) {
	docs := make([]any, 0, len(step.Docs))
	for _, body := range step.Docs {
		docs = append(docs, mapping.NewRaw(step.Type, body))
	}
	if err := h.session.Store(docs...); err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(docs))
	storage, err := h.store.Registry().StorageForName(step.Type)
	for _, doc := range docs {
		var id any
		if err == nil {
			id, _ = storage.DocumentType().Identity(doc)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Harness) read(ctx context.Context, step Step) ([]*mapping.Raw, error) {
	storage, err := h.store.Registry().StorageForName(step.Type)
	if err != nil {
		return nil, err
	}
	if step.Op == OpQuery {
		return h.session.QueryRaw(ctx, step.Type, querysql.BuildSelect(storage, step.Filter, step.OrderBy))
	}
	sel, err := whereSelect(step)
	if err != nil {
		return nil, err
	}
	text, err := h.compiler.Compile(storage, sel)
	if err != nil {
		return nil, err
	}
	return h.session.QueryRaw(ctx, step.Type, text)
}

// whereSelect builds a conjunction of equalities over Match, in key order.
func whereSelect(step Step) (queryir.Select, error) {
	sel := queryir.Select{Limit: step.Limit}
	if len(step.Match) > 0 {
		keys := make([]string, 0, len(step.Match))
		for k := range step.Match {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		and := queryir.And{}
		for _, k := range keys {
			and.Predicates = append(and.Predicates, queryir.Equals{Field: k, Value: step.Match[k]})
		}
		sel.Filter = and
	}
	for _, term := range step.Order {
		o, err := queryir.ParseOrder(term)
		if err != nil {
			return queryir.Select{}, err
		}
		sel.OrderBy = append(sel.OrderBy, o)
	}
	return sel, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, session.ErrSessionClosed):
		return OutcomeSessionClosed
	case mapping.IsUnregistered(err):
		return OutcomeUnregistered
	case mapping.IsIdentityMissing(err):
		return OutcomeIdentityMissing
	case session.IsSerialization(err):
		return OutcomeSerialization
	case session.IsExecution(err):
		return OutcomeExecution
	default:
		return OutcomeError
	}
}
