package registry

import (
	"time"

	"github.com/google/uuid"
)

// Server represents jr_servers, one row per live application process.
// UpdatedAt doubles as the heartbeat timestamp; a server whose UpdatedAt is
// older than the staleness threshold is dead and its owned records get reaped.
type Server struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Hostname  string    `gorm:"not null" json:"hostname"`
	PID       int       `gorm:"not null" json:"pid"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"index;default:now()" json:"updated_at"`
}

func (Server) TableName() string {
	return "jr_servers"
}
