package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/querysql"
)

// ConnectionProvider hands out dedicated connections. *sql.DB satisfies it.
//
// Every connection the session acquires is closed (returned to the pool)
// before the operation that acquired it returns, on every path.
type ConnectionProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Operation names used in ExecutionError.Op.
const (
	opSave  = "save changes"
	opLoad  = "load"
	opQuery = "query"
)

// Option configures a Session.
type Option func(*Session)

// WithSerializer replaces the default JSONSerializer.
func WithSerializer(ser Serializer) Option {
	return func(s *Session) { s.serializer = ser }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithIDGenerator sets the source of ids assigned to UUID-keyed documents
// on Store (default uuid.New).
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Session) { s.newID = gen }
}

// pendingGroup holds the store intents for one document type in
// insertion order.
type pendingGroup struct {
	key  mapping.TypeKey
	docs []any
}

// Session is a unit of work over a document store.
//
// Store and Delete buffer intent; SaveChanges applies all of it in one
// transaction. Load and Query read committed state through their own
// connection, so pending stores are not visible to them.
//
// A Session is not safe for concurrent use. Use one session per logical
// unit of work.
type Session struct {
	registry   *mapping.Registry
	conns      ConnectionProvider
	serializer Serializer
	logger     *slog.Logger
	compiler   *querysql.Compiler
	newID      func() uuid.UUID

	groups     []*pendingGroup
	groupIndex map[mapping.TypeKey]int
	deletes    []mapping.Command
	closed     bool
}

// New creates an open session with an empty change set.
func New(registry *mapping.Registry, conns ConnectionProvider, opts ...Option) *Session {
	s := &Session{
		registry:   registry,
		conns:      conns,
		serializer: JSONSerializer{},
		logger:     slog.Default(),
		compiler:   querysql.NewCompiler(),
		newID:      uuid.New,
		groupIndex: make(map[mapping.TypeKey]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the session resolves storage from.
func (s *Session) Registry() *mapping.Registry { return s.registry }

// Store buffers documents for upsert on the next SaveChanges.
//
// The type is taken from each instance. Registered UUID-keyed documents
// passed by pointer get an id assigned here if theirs is zero. Unregistered
// types are accepted and fail SaveChanges before anything is written.
func (s *Session) Store(docs ...any) error {
	if s.closed {
		return ErrSessionClosed
	}
	for i, doc := range docs {
		if isNil(doc) {
			return fmt.Errorf("store: document %d is nil", i)
		}
	}

	for _, doc := range docs {
		if storage, err := s.registry.StorageFor(doc); err == nil {
			storage.DocumentType().AssignIdentityWith(doc, s.newID)
		}

		key := mapping.KeyOf(doc)
		idx, ok := s.groupIndex[key]
		if !ok {
			idx = len(s.groups)
			s.groupIndex[key] = idx
			s.groups = append(s.groups, &pendingGroup{key: key})
		}
		s.groups[idx].docs = append(s.groups[idx].docs, doc)
	}
	return nil
}

// Delete buffers deletion of doc, resolved by its identity now.
func (s *Session) Delete(doc any) error {
	if s.closed {
		return ErrSessionClosed
	}
	storage, err := s.registry.StorageFor(doc)
	if err != nil {
		return err
	}
	cmd, err := storage.DeleteCommandForEntity(doc)
	if err != nil {
		return err
	}
	s.deletes = append(s.deletes, cmd)
	return nil
}

// DeleteByID buffers deletion of the T document with the given id.
func DeleteByID[T any](s *Session, id any) error {
	if s.closed {
		return ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return err
	}
	return s.deleteID(storage, id)
}

// DeleteRaw buffers deletion by logical type name and id.
func (s *Session) DeleteRaw(typeName string, id any) error {
	if s.closed {
		return ErrSessionClosed
	}
	storage, err := s.registry.StorageForName(typeName)
	if err != nil {
		return err
	}
	return s.deleteID(storage, id)
}

func (s *Session) deleteID(storage *mapping.DocumentStorage, id any) error {
	cmd, err := storage.DeleteCommandForID(id)
	if err != nil {
		return err
	}
	s.deletes = append(s.deletes, cmd)
	return nil
}

// Pending returns the number of buffered store and delete intents.
func (s *Session) Pending() (stores, deletes int) {
	for _, g := range s.groups {
		stores += len(g.docs)
	}
	return stores, len(s.deletes)
}

// SaveChanges applies every pending upsert, then every pending delete, in
// one transaction on one connection.
//
// All upsert commands are synthesized before a connection is acquired; an
// unregistered type, missing identity, or serialization failure returns
// without touching the store. Any execution failure rolls the transaction
// back. In both cases the pending changes are left exactly as they were,
// so the call can be retried. On success they are cleared.
func (s *Session) SaveChanges(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	upserts, err := s.synthesizeUpserts()
	if err != nil {
		return err
	}
	deletes := s.deletes
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	s.logger.Debug("saving changes", "upserts", len(upserts), "deletes", len(deletes))

	conn, err := s.acquire(ctx, opSave)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &ExecutionError{Op: opSave, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	for _, group := range [][]mapping.Command{upserts, deletes} {
		for _, cmd := range group {
			if _, err := tx.ExecContext(ctx, cmd.SQL, cmd.Args...); err != nil {
				s.logger.Warn("rolling back changes", "sql", cmd.SQL, "error", err)
				return &ExecutionError{Op: opSave, SQL: cmd.SQL, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ExecutionError{Op: opSave, Err: fmt.Errorf("commit: %w", err)}
	}

	s.clearPending()
	s.logger.Info("changes saved", "upserts", len(upserts), "deletes", len(deletes))
	return nil
}

// synthesizeUpserts builds every upsert command without side effects on
// the pending set.
func (s *Session) synthesizeUpserts() ([]mapping.Command, error) {
	var cmds []mapping.Command
	for _, group := range s.groups {
		for _, doc := range group.docs {
			storage, err := s.registry.StorageFor(doc)
			if err != nil {
				return nil, err
			}
			payload, err := s.serializer.ToJSON(doc)
			if err != nil {
				return nil, &SerializationError{Type: storage.DocumentType().Name, Err: err}
			}
			cmd, err := storage.UpsertCommand(doc, payload)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

func (s *Session) clearPending() {
	s.groups = nil
	s.groupIndex = make(map[mapping.TypeKey]int)
	s.deletes = nil
}

// Close discards pending changes. The session holds no connection between
// operations, so there is nothing else to release. Close is idempotent and
// always returns nil.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if stores, deletes := s.Pending(); stores+deletes > 0 {
		s.logger.Debug("closing session with unsaved changes", "stores", stores, "deletes", deletes)
	}
	s.clearPending()
	s.closed = true
	return nil
}

func (s *Session) acquire(ctx context.Context, op string) (*sql.Conn, error) {
	conn, err := s.conns.Conn(ctx)
	if err != nil {
		return nil, &ExecutionError{Op: op, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	return conn, nil
}

func isNil(doc any) bool {
	if doc == nil {
		return true
	}
	rv := reflect.ValueOf(doc)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
