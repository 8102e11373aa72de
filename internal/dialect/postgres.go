package dialect

import (
	"fmt"
	"strings"
)

// Postgres targets PostgreSQL jsonb columns with a plpgsql upsert function.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Bind(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) CreateTable(t Table) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s %s CONSTRAINT pk_%s PRIMARY KEY,
    %s jsonb NOT NULL
)`, t.Name, t.IDColumn, postgresIDType(t.IDKind), t.Name, t.DataColumn)
}

func (Postgres) DefineUpsert(t Table) []string {
	return []string{fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s(docId %s, doc jsonb) RETURNS VOID AS $$
BEGIN
    INSERT INTO %s (%s, %s) VALUES (docId, doc)
        ON CONFLICT (%s) DO UPDATE SET %s = doc;
END;
$$ LANGUAGE plpgsql`, t.UpsertName, postgresIDType(t.IDKind), t.Name, t.IDColumn, t.DataColumn, t.IDColumn, t.DataColumn)}
}

func (Postgres) UpsertCommand(t Table) string {
	return fmt.Sprintf("SELECT %s($1, $2)", t.UpsertName)
}

func (Postgres) DeleteCommand(t Table) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.Name, t.IDColumn)
}

func (Postgres) LoadCommand(t Table) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.DataColumn, t.Name, t.IDColumn)
}

func (d Postgres) LoadManyCommand(t Table, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s ASC",
		t.DataColumn, t.Name, t.IDColumn, bindList(d, 1, n), t.IDColumn)
}

// JSONField extracts text with ->> (single key) or #>> (nested path) and
// casts it when the comparison is numeric or boolean.
func (Postgres) JSONField(column string, path []string, kind ValueKind) string {
	var expr string
	if len(path) == 1 {
		expr = fmt.Sprintf("%s ->> '%s'", column, path[0])
	} else {
		expr = fmt.Sprintf("%s #>> '{%s}'", column, strings.Join(path, ","))
	}

	switch kind {
	case KindNumber:
		return "(" + expr + ")::numeric"
	case KindBool:
		return "(" + expr + ")::boolean"
	default:
		return expr
	}
}

func postgresIDType(k IDKind) string {
	switch k {
	case IDInt:
		return "bigint"
	case IDUUID:
		return "uuid"
	default:
		return "varchar"
	}
}
