// Package catalog declares schemaless document types in CUE.
//
// A catalog file lists document types by logical name:
//
//	document: Invoice: {
//		id:     "number"
//		idType: "int"
//	}
//	document: Note: idType: "uuid"
//
// id names the payload key holding the identity (default "id"); idType is
// one of "string" (default), "int" or "uuid". Declared types are added to a
// registry as raw types, so the CLI can store and query them without Go
// structs.
package catalog
