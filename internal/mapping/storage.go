package mapping

import (
	"fmt"

	"github.com/roach88/docstore/internal/dialect"
)

// Command is a synthesized, store-specific statement with bound arguments.
//
// Commands carry instance-specific values and are built fresh for every
// use; only the SQL text is shared.
type Command struct {
	SQL  string
	Args []any
}

// DocumentStorage synthesizes commands for one document type.
type DocumentStorage struct {
	docType *DocumentType
	dialect dialect.Dialect
	table   dialect.Table

	upsertSQL string
	deleteSQL string
	loadSQL   string
}

func newDocumentStorage(docType *DocumentType, d dialect.Dialect) *DocumentStorage {
	table := docType.Table()
	return &DocumentStorage{
		docType:   docType,
		dialect:   d,
		table:     table,
		upsertSQL: d.UpsertCommand(table),
		deleteSQL: d.DeleteCommand(table),
		loadSQL:   d.LoadCommand(table),
	}
}

// DocumentType returns the descriptor this storage serves.
func (s *DocumentStorage) DocumentType() *DocumentType { return s.docType }

// Dialect returns the dialect commands are rendered in.
func (s *DocumentStorage) Dialect() dialect.Dialect { return s.dialect }

// TableName returns the physical table; identical to the table the schema
// builder creates for this type.
func (s *DocumentStorage) TableName() string { return s.table.Name }

// Table returns every physical name of the type.
func (s *DocumentStorage) Table() dialect.Table { return s.table }

// UpsertCommand binds the document's identity and its already-serialized
// JSON payload to the upsert routine. Executing it twice with the same
// identity leaves one row holding the later payload.
func (s *DocumentStorage) UpsertCommand(doc any, payload string) (Command, error) {
	id, err := s.docType.Identity(doc)
	if err != nil {
		return Command{}, err
	}
	return Command{SQL: s.upsertSQL, Args: []any{id, payload}}, nil
}

// DeleteCommandForID deletes by identity. Deleting an id that does not
// exist affects no rows and is not an error.
func (s *DocumentStorage) DeleteCommandForID(id any) (Command, error) {
	normalized, err := s.docType.NormalizeID(id)
	if err != nil {
		return Command{}, err
	}
	return Command{SQL: s.deleteSQL, Args: []any{normalized}}, nil
}

// DeleteCommandForEntity extracts the identity of doc and deletes by it.
func (s *DocumentStorage) DeleteCommandForEntity(doc any) (Command, error) {
	id, err := s.docType.Identity(doc)
	if err != nil {
		return Command{}, err
	}
	return Command{SQL: s.deleteSQL, Args: []any{id}}, nil
}

// LoaderCommand selects the payload for id; it yields zero or one row.
func (s *DocumentStorage) LoaderCommand(id any) (Command, error) {
	normalized, err := s.docType.NormalizeID(id)
	if err != nil {
		return Command{}, err
	}
	return Command{SQL: s.loadSQL, Args: []any{normalized}}, nil
}

// LoadManyCommand selects payloads for every id, ordered by identity.
func (s *DocumentStorage) LoadManyCommand(ids ...any) (Command, error) {
	if len(ids) == 0 {
		return Command{}, fmt.Errorf("load many %s: no ids", s.docType.Name)
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		normalized, err := s.docType.NormalizeID(id)
		if err != nil {
			return Command{}, err
		}
		args[i] = normalized
	}
	return Command{SQL: s.dialect.LoadManyCommand(s.table, len(ids)), Args: args}, nil
}
