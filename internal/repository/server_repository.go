package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type PostgresServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) ServerRepository {
	return &PostgresServerRepository{db: db}
}

func (r *PostgresServerRepository) Create(ctx context.Context, s *registry.Server) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresServerRepository) GetByID(ctx context.Context, id uuid.UUID) (registry.Server, error) {
	var s registry.Server
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return registry.Server{}, jr_errors.ErrNotFound
		}
		return registry.Server{}, err
	}
	return s, nil
}

func (r *PostgresServerRepository) Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&registry.Server{}).
		Where("id = ?", id).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) ListLive(ctx context.Context, cutoff time.Time) ([]registry.Server, error) {
	var servers []registry.Server
	err := r.db.WithContext(ctx).
		Where("updated_at >= ?", cutoff).
		Order("hostname ASC").
		Find(&servers).Error
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *PostgresServerRepository) ListStale(ctx context.Context, cutoff time.Time) ([]registry.Server, error) {
	var servers []registry.Server
	err := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Find(&servers).Error
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *PostgresServerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&registry.Server{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}
