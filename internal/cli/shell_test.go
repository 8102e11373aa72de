package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shellHarness struct {
	sh  *shell
	out *bytes.Buffer
}

func newShellHarness(t *testing.T) *shellHarness {
	t.Helper()
	env := newCLIEnv(t)
	out := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out}

	opts := &RootOptions{Format: "json", DSN: env.dsn, Documents: env.catalog}
	a, err := openApp(context.Background(), opts, f)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	sh := newShell(a, f)
	t.Cleanup(sh.close)
	return &shellHarness{sh: sh, out: out}
}

// exec runs one line and decodes its JSON response.
func (h *shellHarness) exec(t *testing.T, line string) response {
	t.Helper()
	h.out.Reset()
	quit := h.sh.exec(context.Background(), line)
	require.False(t, quit, line)
	return decodeResponse(t, h.out.String())
}

func (h *shellHarness) pending(t *testing.T) string {
	t.Helper()
	return string(h.exec(t, "pending").Data)
}

func TestShell_UnitOfWork(t *testing.T) {
	h := newShellHarness(t)

	resp := h.exec(t, `store Person [{"id": "p1", "name": "Ada"}, {"id": "p2", "name": "Grace"}]`)
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `{"type": "Person", "ids": ["p1", "p2"]}`, string(resp.Data))
	assert.JSONEq(t, `{"stores": 2, "deletes": 0}`, h.pending(t))

	// Buffered writes are not visible to reads.
	resp = h.exec(t, "load Person p1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	resp = h.exec(t, "save")
	assert.JSONEq(t, `{"stores": 2, "deletes": 0}`, string(resp.Data))
	assert.JSONEq(t, `{"stores": 0, "deletes": 0}`, h.pending(t))

	resp = h.exec(t, "load Person p1")
	assert.JSONEq(t, `[{"id": "p1", "name": "Ada"}]`, string(resp.Data))

	h.exec(t, "delete Person p1")
	assert.JSONEq(t, `{"stores": 0, "deletes": 1}`, h.pending(t))
	h.exec(t, "save")

	resp = h.exec(t, "where Person")
	assert.JSONEq(t, `[{"id": "p2", "name": "Grace"}]`, string(resp.Data))
}

func TestShell_Discard(t *testing.T) {
	h := newShellHarness(t)

	h.exec(t, `store Person {"id": "p1"}`)
	h.exec(t, "delete Person p9")
	assert.JSONEq(t, `{"stores": 1, "deletes": 1}`, h.pending(t))

	h.exec(t, "discard")
	assert.JSONEq(t, `{"stores": 0, "deletes": 0}`, h.pending(t))

	h.exec(t, "save")
	resp := h.exec(t, "where Person")
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestShell_RejectedStoreBuffersNothing(t *testing.T) {
	h := newShellHarness(t)

	resp := h.exec(t, `store Person [{"id": "p1"}, {"name": "no id"}]`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeIdentity, resp.Error.Code)
	assert.JSONEq(t, `{"stores": 0, "deletes": 0}`, h.pending(t))

	resp = h.exec(t, `store Person`)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
}

func TestShell_Queries(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, `store Person [{"id": "p1", "name": "Ada", "age": 36}, {"id": "p2", "name": "Grace", "age": 45}, {"id": "p3", "name": "Barbara", "age": 29}]`)
	h.exec(t, "save")

	resp := h.exec(t, `query Person --order-by "data ->> '$.name'" "data ->> '$.age' > 30"`)
	assert.JSONEq(t, `[{"id": "p1", "name": "Ada", "age": 36}, {"id": "p2", "name": "Grace", "age": 45}]`, string(resp.Data))

	resp = h.exec(t, `where Person --order-by=-age --limit 1`)
	assert.JSONEq(t, `[{"id": "p2", "name": "Grace", "age": 45}]`, string(resp.Data))

	resp = h.exec(t, `where Person "name=\"Barbara\""`)
	assert.JSONEq(t, `[{"id": "p3", "name": "Barbara", "age": 29}]`, string(resp.Data))

	resp = h.exec(t, `where Person --limit lots`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
}

func TestShell_Catalog(t *testing.T) {
	h := newShellHarness(t)

	resp := h.exec(t, "types")
	assert.JSONEq(t, `["Person", "Note", "Invoice"]`, string(resp.Data))

	resp = h.exec(t, "schema")
	var statements []string
	require.NoError(t, json.Unmarshal(resp.Data, &statements))
	assert.Contains(t, statements[0], "mt_doc_person")
}

func TestShell_Control(t *testing.T) {
	h := newShellHarness(t)

	resp := h.exec(t, "frobnicate")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)

	resp = h.exec(t, "format yaml")
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)

	h.out.Reset()
	assert.False(t, h.sh.exec(context.Background(), "format text"))
	assert.False(t, h.sh.exec(context.Background(), "help"))
	assert.Contains(t, h.out.String(), "Commands:")

	h.out.Reset()
	h.sh.exec(context.Background(), "pending")
	assert.Equal(t, "0 store(s), 0 delete(s) pending\n", h.out.String())

	assert.True(t, h.sh.exec(context.Background(), "exit"))
	assert.True(t, h.sh.exec(context.Background(), "QUIT"))
}

func TestShell_CloseReportsDiscarded(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, `store Person {"id": "p1"}`)

	h.out.Reset()
	h.sh.close()
	assert.Contains(t, h.out.String(), "Discarding 1 pending change(s)")
}

func TestShell_Complete(t *testing.T) {
	h := newShellHarness(t)

	assert.Equal(t, []string{"store", "save", "schema"}, h.sh.complete("s"))
	assert.Equal(t, []string{"load Person"}, h.sh.complete("load P"))
	assert.Equal(t, []string{"where Person", "where Note", "where Invoice"}, h.sh.complete("where "))
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  a   b\tc ", []string{"a", "b", "c"}},
		{`a "b c" d`, []string{"a", "b c", "d"}},
		{`data ->> '$.name' = 'Ada'`, []string{"data", "->>", "'$.name'", "=", "'Ada'"}},
		{`"say \"hi\"" x\y`, []string{`say "hi"`, `x\y`}},
		{`""`, []string{""}},
		{`pre"fix suf"`, []string{"prefix suf"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := splitWords(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := splitWords(`"open`)
	var inputErr *invalidInput
	assert.ErrorAs(t, err, &inputErr)
}

func TestCutWord(t *testing.T) {
	word, rest := cutWord(`  store Person {"a": 1} `)
	assert.Equal(t, "store", word)
	assert.Equal(t, `Person {"a": 1}`, rest)

	word, rest = cutWord("save")
	assert.Equal(t, "save", word)
	assert.Empty(t, rest)
}
