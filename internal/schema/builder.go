// Package schema derives the DDL a document type needs before any command
// from the mapping package can run, and executes it.
//
// Derivation is pure: a Builder only renders text. Apply runs a Script
// against a database handle or transaction.
package schema

import (
	"strings"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
)

// StatementKind orders statements in a script.
type StatementKind int

const (
	KindTable StatementKind = iota
	KindUpsert
)

func (k StatementKind) String() string {
	if k == KindTable {
		return "table"
	}
	return "upsert"
}

// Statement is the DDL for one object of one document type. Some dialects
// need several SQL statements for one object (SQLite's upsert view and
// trigger), so SQL is a list.
type Statement struct {
	Kind StatementKind
	Type string
	SQL  []string
}

// Builder accumulates DDL for document types.
type Builder struct {
	dialect  dialect.Dialect
	tables   []Statement
	routines []Statement
	seen     map[string]bool
}

// NewBuilder returns an empty builder rendering d.
func NewBuilder(d dialect.Dialect) *Builder {
	return &Builder{dialect: d, seen: make(map[string]bool)}
}

// CreateTable records and returns the table definition for t.
// Names come from t.Table(), the same source commands use.
func (b *Builder) CreateTable(t *mapping.DocumentType) Statement {
	stmt := Statement{Kind: KindTable, Type: t.Name, SQL: []string{b.dialect.CreateTable(t.Table())}}
	if b.record(stmt) {
		b.tables = append(b.tables, stmt)
	}
	return stmt
}

// DefineUpsert records and returns the create-or-replace upsert routine for t.
func (b *Builder) DefineUpsert(t *mapping.DocumentType) Statement {
	stmt := Statement{Kind: KindUpsert, Type: t.Name, SQL: b.dialect.DefineUpsert(t.Table())}
	if b.record(stmt) {
		b.routines = append(b.routines, stmt)
	}
	return stmt
}

func (b *Builder) record(stmt Statement) bool {
	key := stmt.Kind.String() + ":" + mapping.TableName(stmt.Type)
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	return true
}

// ToSQL returns every recorded statement in dependency order: all tables,
// then all routines, each group in call order.
func (b *Builder) ToSQL() Script {
	var script Script
	for _, group := range [][]Statement{b.tables, b.routines} {
		for _, stmt := range group {
			script = append(script, stmt.SQL...)
		}
	}
	return script
}

// ForRegistry builds the complete script for every registered type.
func ForRegistry(reg *mapping.Registry) Script {
	b := NewBuilder(reg.Dialect())
	for _, t := range reg.Types() {
		b.CreateTable(t)
		b.DefineUpsert(t)
	}
	return b.ToSQL()
}

// Script is an ordered list of DDL statements without trailing semicolons.
type Script []string

// String renders the script as executable text, one statement per block.
func (s Script) String() string {
	var b strings.Builder
	for i, stmt := range s {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String()
}
