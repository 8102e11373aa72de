package querysql

import (
	"fmt"

	"github.com/roach88/docstore/internal/mapping"
)

// Text is an executable select returning one payload column per row.
type Text struct {
	SQL  string
	Args []any
}

// BuildSelect composes a select over storage's table from a raw filter
// and an optional ordering fragment:
//
//	SELECT data FROM mt_doc_user WHERE data ->> 'FirstName' = 'Jeremy' ORDER BY data ->> 'LastName'
//
// The filter is trusted text evaluated by the store against the payload
// column. It is neither validated nor escaped: passing untrusted input
// here is an injection risk owned by the caller. Use Compiler for
// untrusted values.
//
// An empty filter selects every document; an empty orderBy adds no
// ordering clause.
func BuildSelect(storage *mapping.DocumentStorage, filter, orderBy string) Text {
	sql := fmt.Sprintf("SELECT %s FROM %s", mapping.DataColumn, storage.TableName())
	if filter != "" {
		sql += " WHERE " + filter
	}
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	return Text{SQL: sql}
}
