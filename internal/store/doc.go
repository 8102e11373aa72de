// Package store opens a document store over database/sql.
//
// A Store ties together the database handle, the SQL dialect for its
// driver, and the registry of document types. Callers register types,
// apply the derived schema, then do their work in sessions:
//
//	st, err := store.Open("sqlite3", "app.db")
//	...
//	mapping.Register[User](st.Registry())
//	st.ApplySchema(ctx)
//
//	s := st.OpenSession()
//	defer s.Close()
//	s.Store(&User{FirstName: "Jeremy"})
//	err = s.SaveChanges(ctx)
//
// # Database Configuration
//
// SQLite (driver "sqlite3"):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection; a session holds at most one at a time
//
// PostgreSQL (driver "pgx") uses the pool defaults of database/sql.
package store
