package events

import (
	"encoding/json"
	"time"
)

// Envelope is one change notification: which collection, which document,
// what happened to it, and the document body for added/changed. Server is
// set when the change is addressed to a single server's mailbox.
type Envelope struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	Doc        json.RawMessage `json:"doc,omitempty"`
	Server     string          `json:"server,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEnvelope builds an envelope, marshaling doc. A doc that fails to
// marshal is carried as an id-only notification.
func NewEnvelope(collection, id string, op Op, doc interface{}) Envelope {
	env := Envelope{
		Collection: collection,
		ID:         id,
		Op:         op,
		OccurredAt: time.Now().UTC(),
	}
	if doc != nil {
		if data, err := json.Marshal(doc); err == nil {
			env.Doc = data
		}
	}
	return env
}
