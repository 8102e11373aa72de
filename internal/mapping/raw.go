package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Raw is a schemaless document addressed by its logical type name.
//
// Raw documents serialize as their Body, so a Raw and a struct document of
// the same type produce interchangeable payloads. Store them by pointer,
// as NewRaw returns, so an assigned UUID is visible to the caller.
type Raw struct {
	Type string
	Body map[string]any
}

// NewRaw returns a raw document of the named type.
func NewRaw(typeName string, body map[string]any) *Raw {
	if body == nil {
		body = map[string]any{}
	}
	return &Raw{Type: typeName, Body: body}
}

// MarshalJSON encodes the body. A nil body encodes as {}.
func (r Raw) MarshalJSON() ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Body)
}

// UnmarshalJSON decodes a JSON object into Body, keeping numbers as
// json.Number so large integer ids survive.
func (r *Raw) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("decode raw document: %w", err)
	}
	r.Body = body
	return nil
}

func asRaw(doc any) (*Raw, bool) {
	switch r := doc.(type) {
	case *Raw:
		return r, true
	case Raw:
		return &r, true
	default:
		return nil, false
	}
}
