package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
)

const (
	defaultIDKey = "id"
	documentPath = "document"
)

// Declaration is one declared document type.
type Declaration struct {
	Name   string
	IDKey  string
	IDKind dialect.IDKind
	Pos    token.Pos
}

// Catalog holds declarations in source order.
type Catalog struct {
	Documents []Declaration
}

// CompileError is a declaration problem with its CUE position, if known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a catalog from a .cue file or a directory of them.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("catalog %s: no CUE instances loaded", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, formatCUEError(err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, fmt.Errorf("catalog %s: not a .cue file", path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		value = ctx.CompileBytes(src, cue.Filename(path))
	}

	return Compile(value)
}

// Compile extracts declarations from a built CUE value. A value with no
// document field yields an empty catalog.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{}
	docs := v.LookupPath(cue.ParsePath(documentPath))
	if !docs.Exists() {
		return cat, nil
	}

	iter, err := docs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		decl, err := CompileDocument(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.Documents = append(cat.Documents, decl)
	}
	return cat, nil
}

// CompileDocument parses a single document declaration.
func CompileDocument(name string, v cue.Value) (Declaration, error) {
	decl := Declaration{Name: name, IDKey: defaultIDKey, IDKind: dialect.IDString, Pos: v.Pos()}
	if err := v.Err(); err != nil {
		return decl, formatCUEError(err)
	}

	fields, err := v.Fields()
	if err != nil {
		return decl, &CompileError{
			Field:   documentPath + "." + name,
			Message: "declaration must be a struct",
			Pos:     v.Pos(),
		}
	}
	for fields.Next() {
		label := fields.Label()
		switch label {
		case "id":
			key, err := fields.Value().String()
			if err != nil {
				return decl, &CompileError{Field: label, Message: "id must be a string", Pos: fields.Value().Pos()}
			}
			if key == "" {
				return decl, &CompileError{Field: label, Message: "id must not be empty", Pos: fields.Value().Pos()}
			}
			decl.IDKey = key
		case "idType":
			text, err := fields.Value().String()
			if err != nil {
				return decl, &CompileError{Field: label, Message: "idType must be a string", Pos: fields.Value().Pos()}
			}
			kind, err := dialect.ParseIDKind(text)
			if err != nil {
				return decl, &CompileError{Field: label, Message: err.Error(), Pos: fields.Value().Pos()}
			}
			decl.IDKind = kind
		default:
			return decl, &CompileError{
				Field:   label,
				Message: fmt.Sprintf("unknown field in document %s", name),
				Pos:     fields.Value().Pos(),
			}
		}
	}
	return decl, nil
}

// RegisterAll adds every declaration to reg as a raw document type.
func (c *Catalog) RegisterAll(reg *mapping.Registry) error {
	for _, decl := range c.Documents {
		if _, err := reg.RegisterRaw(decl.Name, decl.IDKey, decl.IDKind); err != nil {
			if decl.Pos.IsValid() {
				return &CompileError{Field: documentPath + "." + decl.Name, Message: err.Error(), Pos: decl.Pos}
			}
			return err
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
