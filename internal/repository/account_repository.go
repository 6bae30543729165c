package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *account.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (account.User, error) {
	var u account.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.User{}, jr_errors.ErrNotFound
		}
		return account.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (account.User, error) {
	var u account.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.User{}, jr_errors.ErrNotFound
		}
		return account.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&account.User{}).Count(&count).Error
	return count, err
}

type PostgresAPIKeyRepository struct {
	db        *gorm.DB
	lifecycle Lifecycle
}

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &PostgresAPIKeyRepository{
		db:        db,
		lifecycle: NewLifecycle(db, &account.APIKey{}),
	}
}

func (r *PostgresAPIKeyRepository) Create(ctx context.Context, k *account.APIKey) error {
	res := r.db.WithContext(ctx).Create(k)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jr_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresAPIKeyRepository) GetLiveByUser(ctx context.Context, userID uuid.UUID) (account.APIKey, error) {
	var k account.APIKey
	err := Live(r.db.WithContext(ctx)).Where("user_id = ?", userID).First(&k).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.APIKey{}, jr_errors.ErrNotFound
		}
		return account.APIKey{}, err
	}
	return k, nil
}

func (r *PostgresAPIKeyRepository) GetLiveByKey(ctx context.Context, key string) (account.APIKey, error) {
	var k account.APIKey
	err := Live(r.db.WithContext(ctx)).Where("key = ?", key).First(&k).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.APIKey{}, jr_errors.ErrNotFound
		}
		return account.APIKey{}, err
	}
	return k, nil
}

func (r *PostgresAPIKeyRepository) ListLiveByUser(ctx context.Context, userID uuid.UUID) ([]account.APIKey, error) {
	var keys []account.APIKey
	err := Live(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *PostgresAPIKeyRepository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.lifecycle.Remove(ctx, id)
}

func (r *PostgresAPIKeyRepository) Restore(ctx context.Context, id uuid.UUID) error {
	return r.lifecycle.Restore(ctx, id)
}

func (r *PostgresAPIKeyRepository) FindIncludingDeleted(ctx context.Context, id uuid.UUID) (account.APIKey, error) {
	var k account.APIKey
	if err := r.lifecycle.FindIncludingDeleted(ctx, id, &k); err != nil {
		return account.APIKey{}, err
	}
	return k, nil
}

type PostgresSettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &PostgresSettingRepository{db: db}
}

func (r *PostgresSettingRepository) Get(ctx context.Context, name string) (account.Setting, error) {
	var s account.Setting
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.Setting{}, jr_errors.ErrNotFound
		}
		return account.Setting{}, err
	}
	return s, nil
}

func (r *PostgresSettingRepository) Upsert(ctx context.Context, name, value string) (account.Setting, error) {
	s := account.Setting{
		ID:        uuid.New(),
		Name:      name,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&s).Error
	if err != nil {
		return account.Setting{}, err
	}
	return r.Get(ctx, name)
}

type PostgresUploadTokenRepository struct {
	db *gorm.DB
}

func NewUploadTokenRepository(db *gorm.DB) UploadTokenRepository {
	return &PostgresUploadTokenRepository{db: db}
}

func (r *PostgresUploadTokenRepository) Create(ctx context.Context, t *account.UploadToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *PostgresUploadTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (account.UploadToken, error) {
	var t account.UploadToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.UploadToken{}, jr_errors.ErrNotFound
		}
		return account.UploadToken{}, err
	}
	return t, nil
}

func (r *PostgresUploadTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&account.UploadToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jr_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&account.UploadToken{})
	return res.RowsAffected, res.Error
}
