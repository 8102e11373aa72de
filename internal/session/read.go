package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/queryir"
	"github.com/roach88/docstore/internal/querysql"
)

// Load fetches the T document with the given id.
// It returns nil and no error when no such document exists.
func Load[T any](ctx context.Context, s *Session, id any) (*T, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return nil, err
	}
	data, found, err := s.loadPayload(ctx, storage, id)
	if err != nil || !found {
		return nil, err
	}

	doc := new(T)
	if err := s.decode(storage, data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadMany fetches the T documents with the given ids, ordered by id.
// Ids with no stored document are skipped.
func LoadMany[T any](ctx context.Context, s *Session, ids ...any) ([]T, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []T{}, nil
	}
	cmd, err := storage.LoadManyCommand(ids...)
	if err != nil {
		return nil, err
	}
	return collect[T](ctx, s, storage, opLoad, querysql.Text{SQL: cmd.SQL, Args: cmd.Args})
}

// LoadRaw fetches a document by logical type name and id without a Go type.
// It returns nil and no error when no such document exists.
func (s *Session) LoadRaw(ctx context.Context, typeName string, id any) (*mapping.Raw, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := s.registry.StorageForName(typeName)
	if err != nil {
		return nil, err
	}
	data, found, err := s.loadPayload(ctx, storage, id)
	if err != nil || !found {
		return nil, err
	}

	raw := &mapping.Raw{Type: storage.DocumentType().Name}
	if err := s.decode(storage, data, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Query returns the T documents matching a raw filter expression over the
// payload column, optionally ordered by orderBy.
//
// filter and orderBy are trusted text; see querysql.BuildSelect. Without
// an orderBy the result order is whatever the store produces. A filter the
// store rejects surfaces as an ExecutionError. No matches yields an empty
// slice.
func Query[T any](ctx context.Context, s *Session, filter, orderBy string) ([]T, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return nil, err
	}
	return collect[T](ctx, s, storage, opQuery, querysql.BuildSelect(storage, filter, orderBy))
}

// QueryWhere returns the T documents selected by a declarative query.
// Values are bound as parameters and results are always ordered, with id
// as the final tiebreak.
func QueryWhere[T any](ctx context.Context, s *Session, sel queryir.Select) ([]T, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return nil, err
	}
	text, err := s.compiler.Compile(storage, sel)
	if err != nil {
		return nil, err
	}
	return collect[T](ctx, s, storage, opQuery, text)
}

// QueryText runs a select prepared elsewhere, typically by
// querysql.BuildSelect or querysql.Compiler, and decodes every row as T.
func QueryText[T any](ctx context.Context, s *Session, q querysql.Text) ([]T, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := mapping.StorageOf[T](s.registry)
	if err != nil {
		return nil, err
	}
	return collect[T](ctx, s, storage, opQuery, q)
}

// QueryRaw runs a prepared select against a type's table and returns the
// payloads as Raw documents. q must select the payload column only.
func (s *Session) QueryRaw(ctx context.Context, typeName string, q querysql.Text) ([]*mapping.Raw, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	storage, err := s.registry.StorageForName(typeName)
	if err != nil {
		return nil, err
	}
	payloads, err := s.fetch(ctx, opQuery, q)
	if err != nil {
		return nil, err
	}

	docs := make([]*mapping.Raw, 0, len(payloads))
	for _, data := range payloads {
		raw := &mapping.Raw{Type: storage.DocumentType().Name}
		if err := s.decode(storage, data, raw); err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	return docs, nil
}

func (s *Session) loadPayload(ctx context.Context, storage *mapping.DocumentStorage, id any) (string, bool, error) {
	cmd, err := storage.LoaderCommand(id)
	if err != nil {
		return "", false, err
	}

	conn, err := s.acquire(ctx, opLoad)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()

	var data string
	err = conn.QueryRowContext(ctx, cmd.SQL, cmd.Args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &ExecutionError{Op: opLoad, SQL: cmd.SQL, Err: err}
	}
	return data, true, nil
}

func collect[T any](ctx context.Context, s *Session, storage *mapping.DocumentStorage, op string, q querysql.Text) ([]T, error) {
	payloads, err := s.fetch(ctx, op, q)
	if err != nil {
		return nil, err
	}

	docs := make([]T, len(payloads))
	for i, data := range payloads {
		if err := s.decode(storage, data, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// fetch reads every payload before the connection is released.
func (s *Session) fetch(ctx context.Context, op string, q querysql.Text) ([]string, error) {
	conn, err := s.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, &ExecutionError{Op: op, SQL: q.SQL, Err: err}
	}
	defer rows.Close()

	payloads := []string{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, &ExecutionError{Op: op, SQL: q.SQL, Err: err}
		}
		payloads = append(payloads, data)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: op, SQL: q.SQL, Err: err}
	}

	s.logger.Debug("query complete", "op", op, "rows", len(payloads))
	return payloads, nil
}

func (s *Session) decode(storage *mapping.DocumentStorage, data string, dest any) error {
	if err := s.serializer.FromJSON(data, dest); err != nil {
		return &SerializationError{Type: storage.DocumentType().Name, Err: err}
	}
	return nil
}
