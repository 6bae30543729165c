package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

// Lifecycle is the soft-delete capability composed into repositories whose
// records carry a `deleted` flag. Rows are flagged rather than dropped so
// they can be restored or resolved by historical queries.
type Lifecycle struct {
	db    *gorm.DB
	model interface{}
}

func NewLifecycle(db *gorm.DB, model interface{}) Lifecycle {
	return Lifecycle{db: db, model: model}
}

// Live scopes a query to non-deleted rows.
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("deleted = ?", false)
}

func (l Lifecycle) Remove(ctx context.Context, id uuid.UUID) error {
	res := l.db.WithContext(ctx).Model(l.model).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{"deleted": true, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (l Lifecycle) Restore(ctx context.Context, id uuid.UUID) error {
	res := l.db.WithContext(ctx).Model(l.model).
		Where("id = ? AND deleted = ?", id, true).
		Updates(map[string]interface{}{"deleted": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (l Lifecycle) FindIncludingDeleted(ctx context.Context, id uuid.UUID, dest interface{}) error {
	err := l.db.WithContext(ctx).Model(l.model).Where("id = ?", id).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jr_errors.ErrNotFound
		}
		return err
	}
	return nil
}
