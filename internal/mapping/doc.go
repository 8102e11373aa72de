// Package mapping is the single source of truth that turns a document type
// into commands against its physical representation.
//
// A Registry is populated at setup time with every document type the
// application persists. Each registered type gets one DocumentType
// descriptor and one DocumentStorage, which synthesizes the load, upsert,
// and delete commands for that type. Lookups for types that were never
// registered fail with UnregisteredTypeError; there is no reflection
// fallback.
//
// # Naming
//
// Physical names are pure functions of the logical type name:
//
//	TableName("User")  == "mt_doc_user"
//	UpsertName("User") == "mt_upsert_user"
//
// The schema package builds DDL from the same functions (via
// DocumentType.Table), so the table a command targets is always the table
// the schema created.
//
// # Identity
//
// Struct documents carry their identity in a string, integer, or uuid.UUID
// field. Raw documents (schemaless maps addressed by type name) carry it
// under a declared key. An identity that is empty, zero, or of the wrong
// kind is reported as IdentityMissingError before any command is built.
package mapping
