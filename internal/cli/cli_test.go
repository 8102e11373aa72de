package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `document: Person: {}
document: Note: idType: "uuid"
document: Invoice: {
	id:     "number"
	idType: "int"
}
`

type cliEnv struct {
	dir     string
	dsn     string
	catalog string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "documents.cue")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o644))
	return &cliEnv{dir: dir, dsn: filepath.Join(dir, "docs.db"), catalog: catalog}
}

// run executes the CLI with the env's database and catalog appended to args.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--dsn", e.dsn, "-d", e.catalog)
	return execute(t, stdin, args...)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func requireFailure(t *testing.T, out string, err error, code string, exit int) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, exit, GetExitCode(err))
	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, code, resp.Error.Code, resp.Error.Message)
}

const people = `[
	// comments and trailing commas are fine
	{"id": "p1", "name": "Ada", "age": 36},
	{"id": "p2", "name": "Grace", "age": 45,},
	{"id": "p3", "name": "Barbara", "age": 29},
]`

func TestStoreAndLoad(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, people, "store", "Person", "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `{"type": "Person", "ids": ["p1", "p2", "p3"]}`, string(resp.Data))

	out, err = env.run(t, "", "load", "Person", "p2", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "p2", "name": "Grace", "age": 45}`, string(decodeResponse(t, out).Data))

	out, err = env.run(t, "", "load", "Person", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Ada"`)
}

func TestStore_FromFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "invoice.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"number": 7, "total": 12.5}`), 0o644))

	out, err := env.run(t, "", "store", "Invoice", path, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "Invoice", "ids": [7]}`, string(decodeResponse(t, out).Data))

	out, err = env.run(t, "", "load", "Invoice", "7", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"number": 7, "total": 12.5}`, string(decodeResponse(t, out).Data))
}

func TestStore_ReplacesExisting(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, `{"id": "p1", "name": "Ada"}`, "store", "Person")
	require.NoError(t, err)
	_, err = env.run(t, `{"id": "p1", "name": "Ada Lovelace"}`, "store", "Person")
	require.NoError(t, err)

	out, err := env.run(t, "", "where", "Person", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "p1", "name": "Ada Lovelace"}]`, string(decodeResponse(t, out).Data))
}

func TestStore_AssignsUUID(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, `{"text": "hello"}`, "store", "Note", "--format", "json")
	require.NoError(t, err)

	var data struct{ IDs []string }
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &data))
	require.Len(t, data.IDs, 1)
	_, err = uuid.Parse(data.IDs[0])
	require.NoError(t, err)

	out, err = env.run(t, "", "load", "Note", data.IDs[0], "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "`+data.IDs[0]+`", "text": "hello"}`, string(decodeResponse(t, out).Data))
}

func TestStore_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		typ   string
		code  string
		exit  int
	}{
		{"unknown type", `{"id": "x"}`, "Ghost", ErrCodeUnregistered, ExitCommandError},
		{"invalid json", `{"id": `, "Person", ErrCodeInvalidInput, ExitCommandError},
		{"not an object", `[1, 2]`, "Person", ErrCodeInvalidInput, ExitCommandError},
		{"missing identity", `[{"id": "ok"}, {"name": "no id"}]`, "Person", ErrCodeIdentity, ExitFailure},
		{"wrong identity kind", `{"number": "seven"}`, "Invoice", ErrCodeIdentity, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			out, err := env.run(t, tt.input, "store", tt.typ, "--format", "json")
			requireFailure(t, out, err, tt.code, tt.exit)

			// Nothing from a rejected input is written.
			out, err = env.run(t, "", "where", "Person", "--format", "json")
			require.NoError(t, err)
			assert.JSONEq(t, `[]`, string(decodeResponse(t, out).Data))
		})
	}
}

func TestStore_MissingFile(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "", "store", "Person", filepath.Join(env.dir, "missing.json"), "--format", "json")
	requireFailure(t, out, err, ErrCodeInvalidInput, ExitCommandError)
}

func TestLoad_Failures(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "load", "Person", "nobody", "--format", "json")
	requireFailure(t, out, err, ErrCodeNotFound, ExitFailure)

	out, err = env.run(t, "", "load", "Invoice", "abc", "--format", "json")
	requireFailure(t, out, err, ErrCodeIdentity, ExitFailure)

	out, err = env.run(t, "", "load", "Ghost", "x", "--format", "json")
	requireFailure(t, out, err, ErrCodeUnregistered, ExitCommandError)
}

func TestDelete(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, people, "store", "Person")
	require.NoError(t, err)

	// Missing ids are not an error.
	out, err := env.run(t, "", "delete", "Person", "p1", "p3", "nobody", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "Person", "ids": ["p1", "p3", "nobody"]}`, string(decodeResponse(t, out).Data))

	out, err = env.run(t, "", "load", "Person", "p1", "--format", "json")
	requireFailure(t, out, err, ErrCodeNotFound, ExitFailure)

	out, err = env.run(t, "", "where", "Person", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "p2", "name": "Grace", "age": 45}]`, string(decodeResponse(t, out).Data))
}

func TestQuery(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, people, "store", "Person")
	require.NoError(t, err)

	out, err := env.run(t, "", "query", "Person", "data ->> '$.age' > 30",
		"--order-by", "data ->> '$.name' DESC", "--format", "json")
	require.NoError(t, err)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "Grace", docs[0]["name"])
	assert.Equal(t, "Ada", docs[1]["name"])

	// No filter selects everything.
	out, err = env.run(t, "", "query", "Person", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &docs))
	assert.Len(t, docs, 3)

	out, err = env.run(t, "", "query", "Person", "data ->> = =", "--format", "json")
	requireFailure(t, out, err, ErrCodeExecution, ExitFailure)
	assert.Contains(t, decodeResponse(t, out).Error.Message, "query")
}

func TestWhere(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, people, "store", "Person")
	require.NoError(t, err)

	names := func(t *testing.T, out string) []string {
		t.Helper()
		var docs []map[string]any
		require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &docs))
		var got []string
		for _, d := range docs {
			got = append(got, d["name"].(string))
		}
		return got
	}

	out, err := env.run(t, "", "where", "Person", "age>=36", "--order-by=-age", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace", "Ada"}, names(t, out))

	out, err = env.run(t, "", "where", "Person", "age<40", "name!=Barbara", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, names(t, out))

	out, err = env.run(t, "", "where", "Person", "--order-by", "name", "--limit", "2", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Barbara"}, names(t, out))

	out, err = env.run(t, "", "where", "Person", "nickname=null", "--format", "json")
	require.NoError(t, err)
	assert.Len(t, names(t, out), 3)

	out, err = env.run(t, "", "where", "Person", "age", "--format", "json")
	requireFailure(t, out, err, ErrCodeInvalidInput, ExitCommandError)

	out, err = env.run(t, "", "where", "Person", "bad field!=1", "--format", "json")
	requireFailure(t, out, err, ErrCodeInvalidInput, ExitCommandError)

	out, err = env.run(t, "", "where", "Person", "--order-by=-age:number", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "Grace", names(t, out)[0])

	out, err = env.run(t, "", "where", "Person", "--order-by=age:date", "--format", "json")
	requireFailure(t, out, err, ErrCodeInvalidInput, ExitCommandError)
}

func TestSchema(t *testing.T) {
	env := newCLIEnv(t)

	out, err := execute(t, "", "schema", "-d", env.catalog, "--format", "json")
	require.NoError(t, err)

	var result SchemaResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	assert.Equal(t, "sqlite", result.Dialect)
	require.NotEmpty(t, result.Statements)
	assert.Contains(t, result.Statements[0], "CREATE TABLE IF NOT EXISTS mt_doc_person")

	// Offline: no database file is created.
	_, statErr := os.Stat(env.dsn)
	assert.True(t, os.IsNotExist(statErr))

	out, err = execute(t, "", "schema", "-d", env.catalog, "--driver", "pgx")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE OR REPLACE FUNCTION mt_upsert_invoice(docId bigint, doc jsonb)")
	assert.Contains(t, out, "id uuid CONSTRAINT pk_mt_doc_note PRIMARY KEY")
}

func TestSchema_OutputFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "schema.sql")

	out, err := execute(t, "", "schema", "-d", env.catalog, "-o", path, "--format", "json")
	require.NoError(t, err)

	var result SchemaResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	assert.Equal(t, path, result.Path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "CREATE VIEW mt_upsert_person")
	assert.Contains(t, string(written), "CREATE TRIGGER mt_upsert_note_insert")
}

func TestApply(t *testing.T) {
	env := newCLIEnv(t)

	for range 2 {
		out, err := env.run(t, "", "apply", "--format", "json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"types": ["Person", "Note", "Invoice"]}`, string(decodeResponse(t, out).Data))
	}
}

func TestConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	cfgPath := filepath.Join(env.dir, "docstore.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"driver: sqlite3\ndsn: "+env.dsn+"\ndocuments: documents.cue\nlog_level: error\n"), 0o644))

	_, err := execute(t, `{"id": "p1", "name": "Ada"}`, "store", "Person", "-c", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "", "load", "Person", "p1", "-c", cfgPath, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "p1", "name": "Ada"}`, string(decodeResponse(t, out).Data))
}

func TestConfigFile_Invalid(t *testing.T) {
	env := newCLIEnv(t)
	cfgPath := filepath.Join(env.dir, "docstore.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("driver: sqlite3\nunknown_key: 1\n"), 0o644))

	out, err := execute(t, "", "apply", "-c", cfgPath, "--format", "json")
	requireFailure(t, out, err, ErrCodeConfig, ExitCommandError)

	out, err = execute(t, "", "apply", "--driver", "oracle", "--format", "json")
	requireFailure(t, out, err, ErrCodeConfig, ExitCommandError)
}

func TestCatalog_Invalid(t *testing.T) {
	env := newCLIEnv(t)
	bad := filepath.Join(env.dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte(`document: A: idType: "float"`), 0o644))

	out, err := execute(t, "", "apply", "--dsn", env.dsn, "-d", bad, "--format", "json")
	requireFailure(t, out, err, ErrCodeCatalog, ExitCommandError)

	out, err = execute(t, "", "schema", "-d", bad, "--format", "json")
	requireFailure(t, out, err, ErrCodeCatalog, ExitCommandError)
}
