package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/queryir"
)

// Compiler compiles queryir selects to parameterized SQL.
//
// All values are parameterized, never interpolated. Every query ends its
// ORDER BY with the identity column so results are deterministic.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts sel into a select over storage's table.
func (c *Compiler) Compile(storage *mapping.DocumentStorage, sel queryir.Select) (Text, error) {
	if err := queryir.Validate(sel).Err(); err != nil {
		return Text{}, err
	}

	cp := &compilation{dialect: storage.Dialect()}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", mapping.DataColumn, storage.TableName())

	if sel.Filter != nil {
		where, err := cp.predicate(sel.Filter)
		if err != nil {
			return Text{}, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	b.WriteString(" ORDER BY ")
	for _, o := range sel.OrderBy {
		expr, err := cp.field(o.Field, o.Kind)
		if err != nil {
			return Text{}, err
		}
		b.WriteString(expr)
		if o.Descending {
			b.WriteString(" DESC, ")
		} else {
			b.WriteString(" ASC, ")
		}
	}
	b.WriteString(mapping.IDColumn + " ASC")

	if sel.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(cp.bind(int64(sel.Limit)))
	}

	return Text{SQL: b.String(), Args: cp.args}, nil
}

// compilation carries argument numbering across one Compile call.
type compilation struct {
	dialect dialect.Dialect
	args    []any
}

func (cp *compilation) bind(v any) string {
	cp.args = append(cp.args, v)
	return cp.dialect.Bind(len(cp.args))
}

func (cp *compilation) field(field string, kind dialect.ValueKind) (string, error) {
	path, err := queryir.ParseField(field)
	if err != nil {
		return "", err
	}
	return cp.dialect.JSONField(mapping.DataColumn, path, kind), nil
}

func (cp *compilation) predicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return cp.equals(pred)
	case *queryir.Equals:
		return cp.equals(*pred)
	case queryir.Compare:
		return cp.compare(pred.Field, pred.Op, pred.Value)
	case *queryir.Compare:
		return cp.compare(pred.Field, pred.Op, pred.Value)
	case queryir.IsNull:
		return cp.isNull(pred.Field)
	case *queryir.IsNull:
		return cp.isNull(pred.Field)
	case queryir.And:
		return cp.join(pred.Predicates, " AND ")
	case *queryir.And:
		return cp.join(pred.Predicates, " AND ")
	case queryir.Or:
		return cp.join(pred.Predicates, " OR ")
	case *queryir.Or:
		return cp.join(pred.Predicates, " OR ")
	case queryir.Not:
		return cp.not(pred.Predicate)
	case *queryir.Not:
		return cp.not(pred.Predicate)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (cp *compilation) equals(eq queryir.Equals) (string, error) {
	if eq.Value == nil {
		return cp.isNull(eq.Field)
	}
	return cp.compare(eq.Field, queryir.OpEq, eq.Value)
}

func (cp *compilation) compare(field string, op queryir.Op, value any) (string, error) {
	kind, bound, err := queryir.KindOf(value)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	expr, err := cp.field(field, kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", expr, op, cp.bind(bound)), nil
}

func (cp *compilation) isNull(field string) (string, error) {
	expr, err := cp.field(field, dialect.KindText)
	if err != nil {
		return "", err
	}
	return expr + " IS NULL", nil
}

// join compiles a conjunction or disjunction. An empty list is vacuously
// true (only And reaches here empty; Validate rejects an empty Or).
func (cp *compilation) join(preds []queryir.Predicate, sep string) (string, error) {
	if len(preds) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		sql, err := cp.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (cp *compilation) not(p queryir.Predicate) (string, error) {
	inner, err := cp.predicate(p)
	if err != nil {
		return "", err
	}
	return "NOT (" + inner + ")", nil
}
