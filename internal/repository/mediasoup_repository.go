package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type PostgresRouterRepository struct {
	db *gorm.DB
}

func NewRouterRepository(db *gorm.DB) RouterRepository {
	return &PostgresRouterRepository{db: db}
}

func (r *PostgresRouterRepository) Create(ctx context.Context, router *mediasoup.Router) error {
	res := r.db.WithContext(ctx).Create(router)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresRouterRepository) GetByCall(ctx context.Context, callID uuid.UUID) (mediasoup.Router, error) {
	var router mediasoup.Router
	err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&router).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mediasoup.Router{}, jr_errors.ErrNotFound
		}
		return mediasoup.Router{}, err
	}
	return router, nil
}

func (r *PostgresRouterRepository) ListByServer(ctx context.Context, serverID uuid.UUID) ([]mediasoup.Router, error) {
	var routers []mediasoup.Router
	err := r.db.WithContext(ctx).
		Where("created_server = ?", serverID).
		Find(&routers).Error
	if err != nil {
		return nil, err
	}
	return routers, nil
}

func (r *PostgresRouterRepository) DeleteByCall(ctx context.Context, callID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("call_id = ?", callID).Delete(&mediasoup.Router{}).Error
}

func (r *PostgresRouterRepository) DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_server = ?", serverID).
		Delete(&mediasoup.Router{})
	return res.RowsAffected, res.Error
}

type PostgresProducerRepository struct {
	db        *gorm.DB
	lifecycle Lifecycle
}

func NewProducerRepository(db *gorm.DB) ProducerRepository {
	return &PostgresProducerRepository{
		db:        db,
		lifecycle: NewLifecycle(db, &mediasoup.ProducerServer{}),
	}
}

func (r *PostgresProducerRepository) Create(ctx context.Context, p *mediasoup.ProducerServer) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresProducerRepository) GetLiveByTrack(ctx context.Context, trackID uuid.UUID) (mediasoup.ProducerServer, error) {
	var p mediasoup.ProducerServer
	err := Live(r.db.WithContext(ctx)).Where("track_id = ?", trackID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mediasoup.ProducerServer{}, jr_errors.ErrNotFound
		}
		return mediasoup.ProducerServer{}, err
	}
	return p, nil
}

func (r *PostgresProducerRepository) FindIncludingDeleted(ctx context.Context, id uuid.UUID) (mediasoup.ProducerServer, error) {
	var p mediasoup.ProducerServer
	if err := r.lifecycle.FindIncludingDeleted(ctx, id, &p); err != nil {
		return mediasoup.ProducerServer{}, err
	}
	return p, nil
}

func (r *PostgresProducerRepository) ListLiveByCall(ctx context.Context, callID uuid.UUID) ([]mediasoup.ProducerServer, error) {
	var producers []mediasoup.ProducerServer
	err := Live(r.db.WithContext(ctx)).
		Where("call_id = ?", callID).
		Order("created_at ASC").
		Find(&producers).Error
	if err != nil {
		return nil, err
	}
	return producers, nil
}

func (r *PostgresProducerRepository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.lifecycle.Remove(ctx, id)
}

func (r *PostgresProducerRepository) Restore(ctx context.Context, id uuid.UUID) error {
	return r.lifecycle.Restore(ctx, id)
}

func (r *PostgresProducerRepository) RemoveByTransport(ctx context.Context, transportID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&mediasoup.ProducerServer{}).
		Where("transport_id = ? AND deleted = ?", transportID, false).
		Updates(map[string]interface{}{"deleted": true, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *PostgresProducerRepository) RemoveByServer(ctx context.Context, serverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&mediasoup.ProducerServer{}).
		Where("created_server = ? AND deleted = ?", serverID, false).
		Updates(map[string]interface{}{"deleted": true, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

type PostgresConnectRequestRepository struct {
	db *gorm.DB
}

func NewConnectRequestRepository(db *gorm.DB) ConnectRequestRepository {
	return &PostgresConnectRequestRepository{db: db}
}

func (r *PostgresConnectRequestRepository) Create(ctx context.Context, req *mediasoup.ConnectRequest) error {
	res := r.db.WithContext(ctx).Create(req)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConnectRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (mediasoup.ConnectRequest, error) {
	var req mediasoup.ConnectRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mediasoup.ConnectRequest{}, jr_errors.ErrNotFound
		}
		return mediasoup.ConnectRequest{}, err
	}
	return req, nil
}

func (r *PostgresConnectRequestRepository) ListPendingFor(ctx context.Context, serverID uuid.UUID) ([]mediasoup.ConnectRequest, error) {
	var reqs []mediasoup.ConnectRequest
	err := r.db.WithContext(ctx).
		Where("receiving_server = ?", serverID).
		Order("seq ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *PostgresConnectRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&mediasoup.ConnectRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConnectRequestRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&mediasoup.ConnectRequest{})
	return res.RowsAffected, res.Error
}

func (r *PostgresConnectRequestRepository) DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("initiating_server = ? OR receiving_server = ?", serverID, serverID).
		Delete(&mediasoup.ConnectRequest{})
	return res.RowsAffected, res.Error
}
