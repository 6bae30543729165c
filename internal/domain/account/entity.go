package account

import (
	"time"

	"github.com/google/uuid"
)

// User represents jr_users. This service only needs identity resolution and
// the admin flag; full account management lives elsewhere.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsAdmin      bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:now()" json:"updated_at"`
}

// APIKey represents jr_api_keys. Keys are soft-deleted when rolled so audit
// queries can still resolve old key ids.
type APIKey struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Key       string    `gorm:"not null;index" json:"key"`
	Deleted   bool      `gorm:"not null;default:false;index" json:"deleted"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// Setting represents jr_settings, a small named-value table. The team name
// published to clients lives here under the name "teamname".
type Setting struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// UploadToken represents jr_upload_tokens.
//
// The flow is:
//   - client calls the API to request an upload token, which checks auth and
//     generates a token
//   - client posts the asset to /api/uploads/:id, and since the id is
//     unguessable we treat that request as authenticated
//   - tokens unused within the TTL are swept
type UploadToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Asset     string    `gorm:"not null" json:"asset"`
	MimeType  string    `gorm:"not null" json:"mime_type"`
	CreatedAt time.Time `gorm:"index;default:now()" json:"created_at"`
}

func (User) TableName() string {
	return "jr_users"
}

func (APIKey) TableName() string {
	return "jr_api_keys"
}

func (Setting) TableName() string {
	return "jr_settings"
}

func (UploadToken) TableName() string {
	return "jr_upload_tokens"
}
