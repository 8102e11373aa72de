package session

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Serializer converts documents to and from JSON payloads.
type Serializer interface {
	ToJSON(doc any) (string, error)
	FromJSON(data string, dest any) error
}

// JSONSerializer is the default Serializer, backed by encoding/json.
// HTML characters are not escaped, so payloads stay readable in the store.
type JSONSerializer struct{}

func (JSONSerializer) ToJSON(doc any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (JSONSerializer) FromJSON(data string, dest any) error {
	return json.Unmarshal([]byte(data), dest)
}
