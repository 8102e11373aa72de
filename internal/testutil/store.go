package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/store"
)

// NewStore opens a SQLite store in a temp directory with User, Issue and
// Counter registered and the schema applied. It is closed on cleanup.
func NewStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "docs.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := st.Registry()
	_, err = mapping.Register[User](reg)
	require.NoError(t, err)
	_, err = mapping.Register[Issue](reg)
	require.NoError(t, err)
	_, err = mapping.Register[Counter](reg)
	require.NoError(t, err)

	require.NoError(t, st.ApplySchema(context.Background()))
	return st
}

// CountRows returns the number of rows in a document type's table.
func CountRows(t *testing.T, st *store.Store, typeName string) int {
	t.Helper()
	var n int
	err := st.DB().QueryRow("SELECT COUNT(*) FROM " + mapping.TableName(typeName)).Scan(&n)
	require.NoError(t, err)
	return n
}
