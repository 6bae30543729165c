package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type PostgresSubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresSubscriberRepository) GetByID(ctx context.Context, id uuid.UUID) (subscriber.Subscriber, error) {
	var s subscriber.Subscriber
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return subscriber.Subscriber{}, jr_errors.ErrNotFound
		}
		return subscriber.Subscriber{}, err
	}
	return s, nil
}

func (r *PostgresSubscriberRepository) GetByScopeHash(ctx context.Context, hash string) (subscriber.Subscriber, error) {
	var s subscriber.Subscriber
	err := r.db.WithContext(ctx).Where("scope_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return subscriber.Subscriber{}, jr_errors.ErrNotFound
		}
		return subscriber.Subscriber{}, err
	}
	return s, nil
}

func (r *PostgresSubscriberRepository) ListByName(ctx context.Context, name string) ([]subscriber.Subscriber, error) {
	var subs []subscriber.Subscriber
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *PostgresSubscriberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&subscriber.Subscriber{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSubscriberRepository) DeleteByConnection(ctx context.Context, serverID uuid.UUID, connection string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("server_id = ? AND connection = ?", serverID, connection).
		Delete(&subscriber.Subscriber{})
	return res.RowsAffected, res.Error
}

func (r *PostgresSubscriberRepository) DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Delete(&subscriber.Subscriber{})
	return res.RowsAffected, res.Error
}
