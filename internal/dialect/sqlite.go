package dialect

import (
	"fmt"
	"strings"
)

// SQLite targets SQLite with the JSON1 functions (bundled with go-sqlite3).
//
// SQLite has no stored procedures, so the upsert routine is a view over the
// document table with an INSTEAD OF INSERT trigger. Inserting into the view
// replaces any row with the same identity.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Bind(int) string { return "?" }

func (SQLite) CreateTable(t Table) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s %s NOT NULL PRIMARY KEY,
    %s TEXT NOT NULL CHECK (json_valid(%s))
)`, t.Name, t.IDColumn, sqliteIDType(t.IDKind), t.DataColumn, t.DataColumn)
}

func (SQLite) DefineUpsert(t Table) []string {
	return []string{
		fmt.Sprintf("DROP VIEW IF EXISTS %s", t.UpsertName),
		fmt.Sprintf("CREATE VIEW %s AS SELECT %s, %s FROM %s",
			t.UpsertName, t.IDColumn, t.DataColumn, t.Name),
		fmt.Sprintf(`CREATE TRIGGER %s_insert INSTEAD OF INSERT ON %s
BEGIN
    INSERT OR REPLACE INTO %s (%s, %s) VALUES (NEW.%s, NEW.%s);
END`, t.UpsertName, t.UpsertName, t.Name, t.IDColumn, t.DataColumn, t.IDColumn, t.DataColumn),
	}
}

func (SQLite) UpsertCommand(t Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", t.UpsertName, t.IDColumn, t.DataColumn)
}

func (SQLite) DeleteCommand(t Table) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, t.IDColumn)
}

func (SQLite) LoadCommand(t Table) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.DataColumn, t.Name, t.IDColumn)
}

func (d SQLite) LoadManyCommand(t Table, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s ASC",
		t.DataColumn, t.Name, t.IDColumn, bindList(d, 1, n), t.IDColumn)
}

// JSONField uses the ->> operator, which returns SQL-native values
// (INTEGER, REAL, TEXT, or 0/1 for booleans), so no cast is needed.
func (SQLite) JSONField(column string, path []string, _ ValueKind) string {
	return fmt.Sprintf("%s ->> '$.%s'", column, strings.Join(path, "."))
}

func sqliteIDType(k IDKind) string {
	if k == IDInt {
		return "INTEGER"
	}
	return "TEXT"
}
