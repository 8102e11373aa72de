package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB, *sql.Conn, and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyError reports the statement that failed.
type ApplyError struct {
	Index     int
	Statement string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply schema: statement %d: %v", e.Index+1, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Apply executes the script's statements in order, stopping at the first
// failure. Run it inside a transaction for all-or-nothing application.
func Apply(ctx context.Context, db Execer, script Script) error {
	for i, stmt := range script {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &ApplyError{Index: i, Statement: stmt, Err: err}
		}
	}
	return nil
}
