// Package querysql turns document queries into select statements over a
// document table.
//
// Two translators produce the same Text contract, so the session can run
// either without knowing which one built the query:
//
//   - BuildSelect takes a raw, caller-trusted filter fragment.
//   - Compiler.Compile takes a declarative queryir.Select and binds every
//     value as a parameter.
//
// Both select only the payload column.
package querysql
