package queryir

import "github.com/roach88/docstore/internal/dialect"

// Predicate is a filter condition over a document's JSON payload.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Equals matches documents whose field equals Value.
//
//	Equals{Field: "FirstName", Value: "Jeremy"}
//
// compiles (SQLite) to
//
//	data ->> '$.FirstName' = ?
//
// A nil Value compiles to IS NULL.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Compare matches documents whose field compares to Value under Op.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// IsNull matches documents where the field is absent or JSON null.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// And matches when every predicate matches. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches when any predicate matches. It must not be empty.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Order sorts results by a payload field. Kind selects how the field is
// compared; PostgreSQL sorts extracted text lexically unless it is cast.
type Order struct {
	Field      string
	Descending bool
	Kind       dialect.ValueKind // KindText when zero
}

// Select is a query over one document type's table. The table itself comes
// from the storage the query is compiled against.
type Select struct {
	Filter  Predicate // nil = every document
	OrderBy []Order
	Limit   int // 0 = no limit
}

// Where returns a Select with the given filter.
func Where(p Predicate) Select {
	return Select{Filter: p}
}

// Eq is shorthand for Equals{Field: field, Value: value}.
func Eq(field string, value any) Equals {
	return Equals{Field: field, Value: value}
}
