package testutil

import "github.com/google/uuid"

// User is a UUID-keyed document.
type User struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Age       int
	Internal  bool
}

// Issue is keyed by a caller-assigned string tagged as the identity.
type Issue struct {
	Key      string `json:"key" docstore:"id"`
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
	Open     bool   `json:"open"`
}

// Counter is keyed by an integer id.
type Counter struct {
	ID    int64
	Count int
}

// Unregistered is never added to a registry.
type Unregistered struct {
	ID string
}
