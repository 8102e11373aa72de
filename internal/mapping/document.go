package mapping

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/dialect"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// DocumentType describes one registered document type.
type DocumentType struct {
	// Name is the logical type name; every physical name derives from it.
	Name string

	// IDField is the Go field holding the identity (struct types) or the
	// body key (raw types).
	IDField string

	// IDKey is the identity's key inside the JSON payload.
	IDKey string

	// IDKind is the storage type of the identity column.
	IDKind dialect.IDKind

	goType  reflect.Type // nil for raw types
	idIndex []int
}

// TableName returns the document table name.
func (t *DocumentType) TableName() string { return TableName(t.Name) }

// UpsertName returns the upsert routine name.
func (t *DocumentType) UpsertName() string { return UpsertName(t.Name) }

// Table returns the physical names used by dialects for DDL and commands.
func (t *DocumentType) Table() dialect.Table {
	return dialect.Table{
		Name:       t.TableName(),
		UpsertName: t.UpsertName(),
		IDColumn:   IDColumn,
		DataColumn: DataColumn,
		IDKind:     t.IDKind,
	}
}

// GoType returns the registered struct type, or nil for raw types.
func (t *DocumentType) GoType() reflect.Type { return t.goType }

// IsRaw reports whether the type was registered with RegisterRaw.
func (t *DocumentType) IsRaw() bool { return t.goType == nil }

// Identity extracts and normalizes the identity of doc.
//
// The returned value is what commands bind: string for string and UUID
// identities (UUIDs in canonical text form), int64 for integer identities.
func (t *DocumentType) Identity(doc any) (any, error) {
	if raw, ok := asRaw(doc); ok {
		if raw == nil {
			return nil, t.missing("is nil")
		}
		return t.NormalizeID(raw.Body[t.IDKey])
	}

	v, err := t.structValue(doc)
	if err != nil {
		return nil, err
	}
	// Named field types (type UserID string) are read by kind.
	field, err := v.FieldByIndexErr(t.idIndex)
	if err != nil {
		return nil, t.missing("is unreachable: nil embedded struct")
	}
	switch t.IDKind {
	case dialect.IDString:
		return t.NormalizeID(field.String())
	case dialect.IDInt:
		if field.CanInt() {
			return t.NormalizeID(field.Int())
		}
		return t.NormalizeID(field.Uint())
	default:
		return t.NormalizeID(field.Interface())
	}
}

// AssignIdentity gives a UUID-keyed document a fresh id when its id is zero.
// It reports whether an id was assigned. Other kinds are left alone; their
// identities are always caller-provided.
//
// Struct documents must be passed by pointer for assignment to happen. A
// Raw passed by value is only assigned when its Body is non-nil, since the
// map is shared with the caller's copy.
func (t *DocumentType) AssignIdentity(doc any) bool {
	return t.AssignIdentityWith(doc, uuid.New)
}

// AssignIdentityWith is AssignIdentity with a caller-supplied id source.
func (t *DocumentType) AssignIdentityWith(doc any, newID func() uuid.UUID) bool {
	if t.IDKind != dialect.IDUUID {
		return false
	}

	if raw, ok := asRaw(doc); ok {
		if raw == nil {
			return false
		}
		if cur, present := raw.Body[t.IDKey]; present && cur != nil && cur != "" {
			return false
		}
		if raw.Body == nil {
			if _, byValue := doc.(Raw); byValue {
				return false
			}
			raw.Body = map[string]any{}
		}
		raw.Body[t.IDKey] = newID().String()
		return true
	}

	rv := reflect.ValueOf(doc)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != t.goType {
		return false
	}
	field, err := rv.Elem().FieldByIndexErr(t.idIndex)
	if err != nil || !field.CanSet() || field.Interface().(uuid.UUID) != uuid.Nil {
		return false
	}
	field.Set(reflect.ValueOf(newID()))
	return true
}

// NormalizeID converts a caller-supplied id to the value bound in commands.
func (t *DocumentType) NormalizeID(id any) (any, error) {
	if id == nil {
		return nil, t.missing("is empty")
	}

	switch t.IDKind {
	case dialect.IDString:
		s, ok := id.(string)
		if !ok {
			return nil, t.missing(fmt.Sprintf("must be a string, got %T", id))
		}
		if s == "" {
			return nil, t.missing("is empty")
		}
		return s, nil

	case dialect.IDInt:
		n, err := toInt64(id)
		if err != nil {
			return nil, t.missing(err.Error())
		}
		if n == 0 {
			return nil, t.missing("is zero")
		}
		return n, nil

	case dialect.IDUUID:
		var u uuid.UUID
		switch v := id.(type) {
		case uuid.UUID:
			u = v
		case string:
			parsed, err := uuid.Parse(v)
			if err != nil {
				return nil, t.missing(fmt.Sprintf("is not a uuid: %v", err))
			}
			u = parsed
		default:
			return nil, t.missing(fmt.Sprintf("must be a uuid, got %T", id))
		}
		if u == uuid.Nil {
			return nil, t.missing("is empty")
		}
		return u.String(), nil

	default:
		return nil, fmt.Errorf("document type %s: unknown id kind %v", t.Name, t.IDKind)
	}
}

// ParseID converts command-line id text to an id of this type's kind.
func (t *DocumentType) ParseID(s string) (any, error) {
	if t.IDKind == dialect.IDInt {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, t.missing(fmt.Sprintf("is not an integer: %q", s))
		}
		return n, nil
	}
	return s, nil
}

func (t *DocumentType) structValue(doc any) (reflect.Value, error) {
	rv := reflect.ValueOf(doc)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, t.missing("is unreachable: nil document")
		}
		rv = rv.Elem()
	}
	if rv.Type() != t.goType {
		return reflect.Value{}, fmt.Errorf("document type %s: got instance of %s", t.Name, rv.Type())
	}
	return rv, nil
}

func (t *DocumentType) missing(reason string) *IdentityMissingError {
	return &IdentityMissingError{Type: t.Name, Field: t.IDField, Reason: reason}
}

func toInt64(id any) (int64, error) {
	switch v := id.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
			return 0, fmt.Errorf("is not an integer: %v", v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("is not an integer: %s", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", id)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("overflows int64: %d", v)
	}
	return int64(v), nil
}

// resolveIDField finds the identity field of a struct type: an explicit
// name, else a field tagged `docstore:"id"`, else ID, else Id.
func resolveIDField(t reflect.Type, name string) (reflect.StructField, dialect.IDKind, error) {
	var (
		field reflect.StructField
		found bool
	)

	if name != "" {
		field, found = t.FieldByName(name)
	} else {
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).Tag.Get("docstore") == "id" {
				field, found = t.Field(i), true
				break
			}
		}
		for _, candidate := range []string{"ID", "Id"} {
			if found {
				break
			}
			field, found = t.FieldByName(candidate)
		}
	}

	if !found {
		return field, 0, fmt.Errorf("%s has no identity field (tag a field `docstore:\"id\"` or name it ID)", t)
	}
	if !field.IsExported() {
		return field, 0, fmt.Errorf("%s: identity field %s is not exported", t, field.Name)
	}
	if field.Tag.Get("json") == "-" {
		return field, 0, fmt.Errorf("%s: identity field %s is excluded from JSON", t, field.Name)
	}

	switch {
	case field.Type == uuidType:
		return field, dialect.IDUUID, nil
	case field.Type.Kind() == reflect.String:
		return field, dialect.IDString, nil
	case isIntKind(field.Type.Kind()):
		return field, dialect.IDInt, nil
	default:
		return field, 0, fmt.Errorf("%s: identity field %s has unsupported type %s", t, field.Name, field.Type)
	}
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// jsonKey returns the payload key encoding/json uses for a field.
func jsonKey(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}
