package mapping

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Physical column names shared by every document table.
const (
	IDColumn   = "id"
	DataColumn = "data"
)

const (
	tablePrefix  = "mt_doc_"
	upsertPrefix = "mt_upsert_"
)

// TableName returns the document table for a logical type name.
func TableName(typeName string) string {
	return tablePrefix + normalizeName(typeName)
}

// UpsertName returns the upsert routine for a logical type name.
func UpsertName(typeName string) string {
	return upsertPrefix + normalizeName(typeName)
}

// normalizeName NFC-normalizes and lower-cases the name, then maps every
// rune outside [a-z0-9_] to '_' so the result is a bare SQL identifier.
func normalizeName(name string) string {
	// Casers are stateful, so each call gets its own.
	folded := cases.Lower(language.Und).String(norm.NFC.String(name))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
