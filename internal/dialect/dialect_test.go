package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userTable = Table{
	Name:       "mt_doc_user",
	UpsertName: "mt_upsert_user",
	IDColumn:   "id",
	DataColumn: "data",
	IDKind:     IDUUID,
}

func TestForDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite3", "sqlite"},
		{"sqlite", "sqlite"},
		{"pgx", "postgres"},
		{"postgres", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := ForDriver(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, err := ForDriver("mysql")
	assert.ErrorContains(t, err, `no dialect for driver "mysql"`)
}

func TestParseIDKind(t *testing.T) {
	for _, kind := range []IDKind{IDString, IDInt, IDUUID} {
		parsed, err := ParseIDKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	parsed, err := ParseIDKind("")
	require.NoError(t, err)
	assert.Equal(t, IDString, parsed)

	_, err = ParseIDKind("float")
	assert.Error(t, err)
}

func TestSQLite_Commands(t *testing.T) {
	d := SQLite{}

	assert.Equal(t, "INSERT INTO mt_upsert_user (id, data) VALUES (?, ?)", d.UpsertCommand(userTable))
	assert.Equal(t, "DELETE FROM mt_doc_user WHERE id = ?", d.DeleteCommand(userTable))
	assert.Equal(t, "SELECT data FROM mt_doc_user WHERE id = ?", d.LoadCommand(userTable))
	assert.Equal(t, "SELECT data FROM mt_doc_user WHERE id IN (?, ?) ORDER BY id ASC", d.LoadManyCommand(userTable, 2))
}

func TestPostgres_Commands(t *testing.T) {
	d := Postgres{}

	assert.Equal(t, "SELECT mt_upsert_user($1, $2)", d.UpsertCommand(userTable))
	assert.Equal(t, "DELETE FROM mt_doc_user WHERE id = $1", d.DeleteCommand(userTable))
	assert.Equal(t, "SELECT data FROM mt_doc_user WHERE id IN ($1, $2, $3) ORDER BY id ASC", d.LoadManyCommand(userTable, 3))
}

func TestJSONField(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		path    []string
		kind    ValueKind
		want    string
	}{
		{"sqlite text", SQLite{}, []string{"FirstName"}, KindText, "data ->> '$.FirstName'"},
		{"sqlite nested number", SQLite{}, []string{"Address", "Zip"}, KindNumber, "data ->> '$.Address.Zip'"},
		{"postgres text", Postgres{}, []string{"FirstName"}, KindText, "data ->> 'FirstName'"},
		{"postgres nested", Postgres{}, []string{"Address", "City"}, KindText, "data #>> '{Address,City}'"},
		{"postgres number", Postgres{}, []string{"Age"}, KindNumber, "(data ->> 'Age')::numeric"},
		{"postgres bool", Postgres{}, []string{"Active"}, KindBool, "(data ->> 'Active')::boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.JSONField("data", tt.path, tt.kind))
		})
	}
}

func TestSQLite_DefineUpsert(t *testing.T) {
	stmts := SQLite{}.DefineUpsert(userTable)
	require.Len(t, stmts, 3)
	assert.Equal(t, "DROP VIEW IF EXISTS mt_upsert_user", stmts[0])
	assert.Equal(t, "CREATE VIEW mt_upsert_user AS SELECT id, data FROM mt_doc_user", stmts[1])
	assert.Contains(t, stmts[2], "INSTEAD OF INSERT ON mt_upsert_user")
	assert.Contains(t, stmts[2], "INSERT OR REPLACE INTO mt_doc_user")
}
