package subscriber

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Subscriber represents jr_subscribers: one client connection's live
// subscription to a named view on a particular server. The connection ID is
// not a foreign key; it identifies the transport session on the owning server.
type Subscriber struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ServerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"server_id"`
	Connection string    `gorm:"not null" json:"connection"`
	UserID     uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Name       string    `gorm:"not null" json:"name"`
	Context    string    `gorm:"not null;default:'{}'" json:"context"`
	// ScopeHash is a digest of (server, connection, name, context) backing the
	// unique index that makes duplicate subscribes idempotent.
	ScopeHash string    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

func (Subscriber) TableName() string {
	return "jr_subscribers"
}

// ScopeHashFor computes the deterministic scope digest. Context keys are
// sorted so that equal contexts hash equally regardless of map order.
func ScopeHashFor(serverID uuid.UUID, connection, name string, context map[string]string) string {
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(serverID.String()))
	h.Write([]byte{0})
	h.Write([]byte(connection))
	h.Write([]byte{0})
	h.Write([]byte(name))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(context[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EncodeContext serializes a context map for storage.
func EncodeContext(context map[string]string) string {
	if len(context) == 0 {
		return "{}"
	}
	data, err := json.Marshal(context)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeContext parses a stored context value.
func DecodeContext(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
