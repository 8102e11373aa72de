package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
)

func TestCompileBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		document: Invoice: {
			id:     "number"
			idType: "int"
		}
		document: Note: idType: "uuid"
		document: Tag: {}
	`)
	require.NoError(t, v.Err())

	cat, err := Compile(v)
	require.NoError(t, err)
	require.Len(t, cat.Documents, 3)

	assert.Equal(t, "Invoice", cat.Documents[0].Name)
	assert.Equal(t, "number", cat.Documents[0].IDKey)
	assert.Equal(t, dialect.IDInt, cat.Documents[0].IDKind)

	assert.Equal(t, "Note", cat.Documents[1].Name)
	assert.Equal(t, "id", cat.Documents[1].IDKey)
	assert.Equal(t, dialect.IDUUID, cat.Documents[1].IDKind)

	assert.Equal(t, "Tag", cat.Documents[2].Name)
	assert.Equal(t, dialect.IDString, cat.Documents[2].IDKind)
}

func TestCompileEmpty(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	cat, err := Compile(v)
	require.NoError(t, err)
	assert.Empty(t, cat.Documents)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"unknown id type", `document: A: idType: "float"`, "idType"},
		{"unknown field", `document: A: { id: "x", indexed: true }`, "indexed"},
		{"empty id", `document: A: id: ""`, "id"},
		{"id not a string", `document: A: id: 3`, "id"},
		{"not a struct", `document: A: "x"`, "document.A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src, cue.Filename("catalog.cue"))
			_, err := Compile(v)
			require.Error(t, err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	v := cuecontext.New().CompileString("document: A: {\n\tidType: \"float\"\n}\n", cue.Filename("catalog.cue"))
	_, err := Compile(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.cue:2:")
}

func TestCompileSyntaxError(t *testing.T) {
	v := cuecontext.New().CompileString("document: A: {", cue.Filename("broken.cue"))
	_, err := Compile(v)
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "cue", compileErr.Field)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.cue")
	require.NoError(t, os.WriteFile(path, []byte(`document: Note: idType: "uuid"`), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Documents, 1)
	assert.Equal(t, "Note", cat.Documents[0].Name)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package docs\n\ndocument: A: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte("package docs\n\ndocument: B: idType: \"int\"\n"), 0o644))

	cat, err := Load(dir)
	require.NoError(t, err)

	names := map[string]dialect.IDKind{}
	for _, d := range cat.Documents {
		names[d.Name] = d.IDKind
	}
	assert.Equal(t, map[string]dialect.IDKind{"A": dialect.IDString, "B": dialect.IDInt}, names)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x: 1"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "not a .cue file")
}

func TestRegisterAll(t *testing.T) {
	cat := &Catalog{Documents: []Declaration{
		{Name: "Invoice", IDKey: "number", IDKind: dialect.IDInt},
		{Name: "Note", IDKey: "id", IDKind: dialect.IDUUID},
	}}

	reg := mapping.NewRegistry(dialect.SQLite{})
	require.NoError(t, cat.RegisterAll(reg))

	storage, err := reg.StorageForName("Invoice")
	require.NoError(t, err)
	assert.Equal(t, "mt_doc_invoice", storage.TableName())
	assert.True(t, storage.DocumentType().IsRaw())
	assert.Equal(t, dialect.IDInt, storage.DocumentType().IDKind)

	// A second registration of the same names collides.
	assert.Error(t, cat.RegisterAll(reg))
}
