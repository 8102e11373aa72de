package queryir

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/dialect"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseField splits a dotted field path into validated segments.
func ParseField(field string) ([]string, error) {
	if field == "" {
		return nil, errors.New("empty field path")
	}
	segments := strings.Split(field, ".")
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return nil, fmt.Errorf("field %q: invalid segment %q", field, seg)
		}
	}
	return segments, nil
}

// ParseOrder reads an order term: a field path with an optional leading
// "-" for descending and an optional ":number", ":bool" or ":text" suffix
// selecting the comparison kind.
func ParseOrder(term string) (Order, error) {
	o := Order{Field: term}
	if rest, ok := strings.CutPrefix(o.Field, "-"); ok {
		o.Field, o.Descending = rest, true
	}
	if field, kind, ok := strings.Cut(o.Field, ":"); ok {
		o.Field = field
		switch kind {
		case "text":
			o.Kind = dialect.KindText
		case "number":
			o.Kind = dialect.KindNumber
		case "bool":
			o.Kind = dialect.KindBool
		default:
			return Order{}, fmt.Errorf("order %q: unknown kind %q (want text, number or bool)", term, kind)
		}
	}
	if _, err := ParseField(o.Field); err != nil {
		return Order{}, fmt.Errorf("order %q: %w", term, err)
	}
	return o, nil
}

// KindOf classifies a literal value and returns it in the form bound as a
// query argument.
func KindOf(v any) (dialect.ValueKind, any, error) {
	switch val := v.(type) {
	case string:
		return dialect.KindText, val, nil
	case uuid.UUID:
		return dialect.KindText, val.String(), nil
	case bool:
		return dialect.KindBool, val, nil
	case float32:
		return dialect.KindNumber, float64(val), nil
	case float64:
		return dialect.KindNumber, val, nil
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return dialect.KindNumber, rv.Int(), nil
	case rv.CanUint():
		return dialect.KindNumber, int64(rv.Uint()), nil
	case rv.Kind() == reflect.String:
		return dialect.KindText, rv.String(), nil
	default:
		return 0, nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Err joins the problems into one error, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(r.Problems, "; "))
}

// Validate checks field paths, operators, and values throughout a query.
//
// Validate is a pure function with no side effects.
func Validate(sel Select) ValidationResult {
	v := &validator{problems: []string{}}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	for _, o := range sel.OrderBy {
		v.validateField(o.Field)
		if o.Kind < dialect.KindText || o.Kind > dialect.KindBool {
			v.addProblem("order by %s: unknown kind %d", o.Field, o.Kind)
		}
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateField(field string) {
	if _, err := ParseField(field); err != nil {
		v.addProblem("%v", err)
	}
}

func (v *validator) validateValue(field string, value any) {
	if _, _, err := KindOf(value); err != nil {
		v.addProblem("field %q: %v", field, err)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("nil predicate")
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case IsNull:
		v.validateField(pred.Field)
	case *IsNull:
		v.validateField(pred.Field)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateOr(pred)
	case *Or:
		v.validateOr(*pred)
	case Not:
		v.validatePredicate(pred.Predicate)
	case *Not:
		v.validatePredicate(pred.Predicate)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.validateField(eq.Field)
	if eq.Value != nil {
		v.validateValue(eq.Field, eq.Value)
	}
}

func (v *validator) validateCompare(c Compare) {
	v.validateField(c.Field)
	if !c.Op.Valid() {
		v.addProblem("field %q: unknown operator %q", c.Field, c.Op)
	}
	if c.Value == nil {
		v.addProblem("field %q: compare with nil, use IsNull", c.Field)
		return
	}
	v.validateValue(c.Field, c.Value)
}

func (v *validator) validateOr(or Or) {
	if len(or.Predicates) == 0 {
		v.addProblem("empty Or matches nothing")
	}
	v.validateAll(or.Predicates)
}

func (v *validator) validateAll(preds []Predicate) {
	for _, p := range preds {
		v.validatePredicate(p)
	}
}
