package mediasoup

import (
	"time"

	"github.com/google/uuid"
)

// Router represents jr_mediasoup_routers: the per-call SFU routing endpoint,
// owned by the server that created it. RTPCapabilities is the JSON-encoded
// capabilities blob handed back by the SFU.
type Router struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	HuntID          uuid.UUID `gorm:"type:uuid;not null" json:"hunt_id"`
	CallID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"call_id"`
	CreatedServer   uuid.UUID `gorm:"type:uuid;not null;index" json:"created_server"`
	RouterID        uuid.UUID `gorm:"type:uuid;not null" json:"router_id"`
	RTPCapabilities string    `gorm:"not null" json:"rtp_capabilities"`
	CreatedAt       time.Time `gorm:"default:now()" json:"created_at"`
}

// ProducerServer represents jr_mediasoup_producer_servers: a registered media
// source within a call. TrackID is the client-generated GUID for the track;
// at most one live producer may exist per track. Soft-deleted on teardown so
// late observers can still resolve historical producer ids.
type ProducerServer struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CreatedServer uuid.UUID `gorm:"type:uuid;not null;index" json:"created_server"`
	CallID        uuid.UUID `gorm:"type:uuid;not null" json:"call_id"`
	PeerID        uuid.UUID `gorm:"type:uuid;not null" json:"peer_id"`
	TransportID   uuid.UUID `gorm:"type:uuid;not null;index" json:"transport_id"`
	TrackID       uuid.UUID `gorm:"type:uuid;not null;index:idx_jr_producer_track,unique,where:deleted = false" json:"track_id"`
	ProducerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"producer_id"`
	Deleted       bool      `gorm:"not null;default:false;index" json:"deleted"`
	CreatedAt     time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:now()" json:"updated_at"`
}

// ConnectRequest represents jr_mediasoup_monitor_connect_requests: a mailbox
// entry asking the receiving server to run a native transport connect on
// behalf of the initiating server. Seq is a per-transport insertion counter;
// the receiving server must observe requests for one transport in Seq order.
// Entries are transient: fulfilled ones are deleted immediately, unfulfilled
// ones are reaped once older than the handshake timeout.
type ConnectRequest struct {
	ID                           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	InitiatingServer             uuid.UUID `gorm:"type:uuid;not null" json:"initiating_server"`
	ReceivingServer              uuid.UUID `gorm:"type:uuid;not null;index" json:"receiving_server"`
	TransportID                  uuid.UUID `gorm:"type:uuid;not null;index" json:"transport_id"`
	CallID                       uuid.UUID `gorm:"type:uuid;not null" json:"call_id"`
	PeerID                       uuid.UUID `gorm:"type:uuid;not null" json:"peer_id"`
	TrackID                      uuid.UUID `gorm:"type:uuid;not null" json:"track_id"`
	IP                           string    `gorm:"not null" json:"ip"`
	Port                         int       `gorm:"not null" json:"port"`
	SRTPParameters               string    `json:"srtp_parameters"`
	ProducerID                   uuid.UUID `gorm:"type:uuid;not null" json:"producer_id"`
	ProducerSctpStreamParameters string    `json:"producer_sctp_stream_parameters"`
	ProducerLabel                string    `json:"producer_label"`
	ProducerProtocol             string    `json:"producer_protocol"`
	Seq                          int64     `gorm:"autoIncrement;index" json:"seq"`
	CreatedAt                    time.Time `gorm:"index;default:now()" json:"created_at"`
}

func (Router) TableName() string {
	return "jr_mediasoup_routers"
}

func (ProducerServer) TableName() string {
	return "jr_mediasoup_producer_servers"
}

func (ConnectRequest) TableName() string {
	return "jr_mediasoup_monitor_connect_requests"
}
