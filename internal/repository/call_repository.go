package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type PostgresCallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) CallRepository {
	return &PostgresCallRepository{db: db}
}

func (r *PostgresCallRepository) Create(ctx context.Context, c *call.Call) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresCallRepository) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	var c call.Call
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return call.Call{}, jr_errors.ErrNotFound
		}
		return call.Call{}, err
	}
	return c, nil
}

func (r *PostgresCallRepository) TransitionRouterState(ctx context.Context, id uuid.UUID, from, to call.RouterState) error {
	if !from.CanTransition(to) {
		return jr_errors.ErrInvalidTransition
	}
	res := r.db.WithContext(ctx).Model(&call.Call{}).
		Where("id = ? AND router_state = ?", id, from).
		Updates(map[string]interface{}{"router_state": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the call is gone or another server already moved it on.
		var c call.Call
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jr_errors.ErrNotFound
		}
		return jr_errors.ErrInvalidTransition
	}
	return nil
}

func (r *PostgresCallRepository) Close(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&call.Call{}).
		Where("id = ? AND router_state <> ?", id, call.StateClosed).
		Updates(map[string]interface{}{"router_state": call.StateClosed, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var c call.Call
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jr_errors.ErrNotFound
		}
		// already closed
		return nil
	}
	return nil
}

func (r *PostgresCallRepository) UpsertPeer(ctx context.Context, p *call.Peer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"server_id", "updated_at"}),
		}).
		Create(p).Error
}

func (r *PostgresCallRepository) GetPeer(ctx context.Context, callID, userID uuid.UUID) (call.Peer, error) {
	var p call.Peer
	err := r.db.WithContext(ctx).
		Where("call_id = ? AND user_id = ?", callID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return call.Peer{}, jr_errors.ErrNotFound
		}
		return call.Peer{}, err
	}
	return p, nil
}

func (r *PostgresCallRepository) UpdatePeer(ctx context.Context, p call.Peer) error {
	p.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Save(&p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCallRepository) RemovePeer(ctx context.Context, callID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("call_id = ? AND user_id = ?", callID, userID).
		Delete(&call.Peer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCallRepository) ListPeers(ctx context.Context, callID uuid.UUID) ([]call.Peer, error) {
	var peers []call.Peer
	err := r.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Order("joined_at ASC").
		Find(&peers).Error
	if err != nil {
		return nil, err
	}
	return peers, nil
}

func (r *PostgresCallRepository) RemovePeersByServer(ctx context.Context, serverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Delete(&call.Peer{})
	return res.RowsAffected, res.Error
}
