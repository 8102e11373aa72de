package mapping

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/docstore/internal/dialect"
)

// TypeKey identifies the document type of an instance without consulting a
// registry. Struct documents key by Go type (pointers stripped); raw
// documents key by normalized type name.
type TypeKey struct {
	goType reflect.Type
	name   string
}

// KeyOf returns the TypeKey of doc.
func KeyOf(doc any) TypeKey {
	if raw, ok := asRaw(doc); ok {
		if raw == nil {
			return TypeKey{}
		}
		return TypeKey{name: normalizeName(raw.Type)}
	}
	t := reflect.TypeOf(doc)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return TypeKey{goType: t}
}

func (k TypeKey) String() string {
	if k.goType != nil {
		return k.goType.String()
	}
	if k.name != "" {
		return k.name
	}
	return "<nil>"
}

// Option configures a struct registration.
type Option func(*registration)

type registration struct {
	name    string
	idField string
}

// WithName overrides the logical type name (default: the Go type name).
func WithName(name string) Option {
	return func(r *registration) { r.name = name }
}

// WithIDField names the identity field explicitly.
func WithIDField(field string) Option {
	return func(r *registration) { r.idField = field }
}

// Registry maps document types to their storage.
//
// Registration happens at setup; lookups are safe for concurrent use.
type Registry struct {
	dialect dialect.Dialect

	mu      sync.RWMutex
	order   []*DocumentStorage
	byGo    map[reflect.Type]*DocumentStorage
	byTable map[string]*DocumentStorage
}

// NewRegistry creates an empty registry whose commands target d.
func NewRegistry(d dialect.Dialect) *Registry {
	return &Registry{
		dialect: d,
		byGo:    make(map[reflect.Type]*DocumentStorage),
		byTable: make(map[string]*DocumentStorage),
	}
}

// Dialect returns the dialect commands are rendered in.
func (r *Registry) Dialect() dialect.Dialect { return r.dialect }

// Register adds struct type T as a document type.
func Register[T any](r *Registry, opts ...Option) (*DocumentType, error) {
	return r.RegisterType(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// RegisterType is the non-generic form of Register.
func (r *Registry) RegisterType(t reflect.Type, opts ...Option) (*DocumentType, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("register %v: document types must be structs", t)
	}

	reg := registration{name: t.Name()}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.name == "" {
		return nil, fmt.Errorf("register %v: anonymous struct needs WithName", t)
	}

	field, kind, err := resolveIDField(t, reg.idField)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", reg.name, err)
	}

	docType := &DocumentType{
		Name:    reg.name,
		IDField: field.Name,
		IDKey:   jsonKey(field),
		IDKind:  kind,
		goType:  t,
		idIndex: field.Index,
	}
	if err := r.add(docType); err != nil {
		return nil, err
	}
	return docType, nil
}

// RegisterRaw adds a schemaless document type whose identity lives under
// idKey in the payload.
func (r *Registry) RegisterRaw(name, idKey string, kind dialect.IDKind) (*DocumentType, error) {
	if name == "" {
		return nil, fmt.Errorf("register raw type: name is required")
	}
	if idKey == "" {
		return nil, fmt.Errorf("register %s: id key is required", name)
	}

	docType := &DocumentType{
		Name:    name,
		IDField: idKey,
		IDKey:   idKey,
		IDKind:  kind,
	}
	if err := r.add(docType); err != nil {
		return nil, err
	}
	return docType, nil
}

func (r *Registry) add(docType *DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := docType.TableName()
	if existing, ok := r.byTable[table]; ok {
		return fmt.Errorf("register %s: table %s already belongs to %s", docType.Name, table, existing.docType.Name)
	}
	if docType.goType != nil {
		if _, ok := r.byGo[docType.goType]; ok {
			return fmt.Errorf("register %s: %s is already registered", docType.Name, docType.goType)
		}
	}

	storage := newDocumentStorage(docType, r.dialect)
	r.order = append(r.order, storage)
	r.byTable[table] = storage
	if docType.goType != nil {
		r.byGo[docType.goType] = storage
	}
	return nil
}

// StorageFor resolves storage from a document instance.
func (r *Registry) StorageFor(doc any) (*DocumentStorage, error) {
	if raw, ok := asRaw(doc); ok {
		if raw == nil {
			return nil, &UnregisteredTypeError{Type: "<nil>"}
		}
		return r.StorageForName(raw.Type)
	}
	key := KeyOf(doc)
	if key.goType == nil {
		return nil, &UnregisteredTypeError{Type: "<nil>"}
	}
	return r.StorageForType(key.goType)
}

// StorageForType resolves storage for a Go type; pointer types resolve to
// their element type.
func (r *Registry) StorageForType(t reflect.Type) (*DocumentStorage, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	storage, ok := r.byGo[t]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnregisteredTypeError{Type: fmt.Sprint(t)}
	}
	return storage, nil
}

// StorageForName resolves storage by logical type name. Names match
// through the naming authority, so "User" and "user" are the same type.
func (r *Registry) StorageForName(name string) (*DocumentStorage, error) {
	r.mu.RLock()
	storage, ok := r.byTable[TableName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnregisteredTypeError{Type: name}
	}
	return storage, nil
}

// StorageOf resolves storage for T.
func StorageOf[T any](r *Registry) (*DocumentStorage, error) {
	return r.StorageForType(reflect.TypeOf((*T)(nil)).Elem())
}

// Types returns every registered type in registration order.
func (r *Registry) Types() []*DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]*DocumentType, len(r.order))
	for i, s := range r.order {
		types[i] = s.docType
	}
	return types
}
