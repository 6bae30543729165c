package call

import (
	"time"

	"github.com/google/uuid"
)

// RouterState tracks where a call is in the router provisioning lifecycle.
type RouterState string

const (
	StateNoRouter      RouterState = "NO_ROUTER"
	StateRouterPending RouterState = "ROUTER_PENDING"
	StateRouterActive  RouterState = "ROUTER_ACTIVE"
	StateClosed        RouterState = "CLOSED"
)

// CanTransition reports whether moving from s to next is legal. Forward-only:
// a router becomes active only through the pending step, a failed creation
// falls back to NO_ROUTER, and CLOSED is reachable from anywhere but final.
func (s RouterState) CanTransition(next RouterState) bool {
	if s == StateClosed {
		return false
	}
	if next == StateClosed {
		return true
	}
	switch s {
	case StateNoRouter:
		return next == StateRouterPending
	case StateRouterPending:
		return next == StateRouterActive || next == StateNoRouter
	case StateRouterActive:
		return false
	}
	return false
}

// Call represents jr_calls, one voice-call room per puzzle.
type Call struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	HuntID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"hunt_id"`
	PuzzleID    uuid.UUID   `gorm:"type:uuid;not null" json:"puzzle_id"`
	RouterState RouterState `gorm:"not null;default:'NO_ROUTER'" json:"router_state"`
	CreatedAt   time.Time   `gorm:"default:now()" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"default:now()" json:"updated_at"`
}

// Peer represents jr_call_peers. Muted and Deafened are driven by the peer's
// own actions; RemoteMutedBy records a privileged remote mute and can only be
// cleared by the muted peer unmuting themselves.
type Peer struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CallID        uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_jr_call_peer" json:"call_id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_jr_call_peer" json:"user_id"`
	ServerID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"server_id"`
	Muted         bool          `gorm:"default:false" json:"muted"`
	Deafened      bool          `gorm:"default:false" json:"deafened"`
	RemoteMutedBy uuid.NullUUID `gorm:"type:uuid" json:"remote_muted_by"`
	JoinedAt      time.Time     `gorm:"default:now()" json:"joined_at"`
	UpdatedAt     time.Time     `gorm:"default:now()" json:"updated_at"`
}

func (Call) TableName() string {
	return "jr_calls"
}

func (Peer) TableName() string {
	return "jr_call_peers"
}
