package dialect

import (
	"fmt"
	"strings"
)

// IDKind is the storage type of a document identity.
type IDKind int

const (
	IDString IDKind = iota
	IDInt
	IDUUID
)

// String returns the declaration name of the kind ("string", "int", "uuid").
func (k IDKind) String() string {
	switch k {
	case IDString:
		return "string"
	case IDInt:
		return "int"
	case IDUUID:
		return "uuid"
	default:
		return fmt.Sprintf("IDKind(%d)", int(k))
	}
}

// ParseIDKind is the inverse of IDKind.String.
func ParseIDKind(s string) (IDKind, error) {
	switch strings.ToLower(s) {
	case "string", "":
		return IDString, nil
	case "int", "integer":
		return IDInt, nil
	case "uuid":
		return IDUUID, nil
	default:
		return 0, fmt.Errorf("unknown id type %q: must be one of string, int, uuid", s)
	}
}

// ValueKind hints how a JSON field is compared, so dialects without
// native JSON typing can cast the extracted text.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
)

// Table carries the physical names of one document type.
// Every name comes from the mapping package's naming functions.
type Table struct {
	Name       string // e.g. mt_doc_user
	UpsertName string // e.g. mt_upsert_user
	IDColumn   string
	DataColumn string
	IDKind     IDKind
}

// Dialect renders the DDL and command text for one relational store.
//
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "postgres").
	Name() string

	// Bind returns the placeholder for the n-th (1-based) argument.
	Bind(n int) string

	// CreateTable returns the table definition keyed by identity with a JSON payload column.
	CreateTable(t Table) string

	// DefineUpsert returns the statements that create or replace the upsert routine.
	// The routine must be invocable by UpsertCommand after the table exists.
	DefineUpsert(t Table) []string

	// UpsertCommand invokes the upsert routine with (id, payload).
	UpsertCommand(t Table) string

	// DeleteCommand deletes by identity; missing rows are not an error.
	DeleteCommand(t Table) string

	// LoadCommand selects the payload for one identity.
	LoadCommand(t Table) string

	// LoadManyCommand selects payloads for n identities.
	LoadManyCommand(t Table, n int) string

	// JSONField extracts a dotted path from the payload column as a comparable expression.
	// Path segments must already be validated identifiers.
	JSONField(column string, path []string, kind ValueKind) string
}

// ForDriver returns the dialect for a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

func bindList(d Dialect, from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Bind(from + i)
	}
	return strings.Join(parts, ", ")
}
