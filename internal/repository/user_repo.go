package repository

import (
	"context"
	"time"

	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdateSession(ctx context.Context, userID uuid.UUID, tokenVersion string, seenAt time.Time) error
	TouchLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrap("find user", err)
	}
	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrap("find user", err)
	}
	return &user, nil
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return wrap("create user", r.db.WithContext(ctx).Create(user).Error)
}

// UpdateSession rotates the token version, which ends any other session.
func (r *userRepo) UpdateSession(ctx context.Context, userID uuid.UUID, tokenVersion string, seenAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"token_version": tokenVersion, "last_seen_at": seenAt})
	if res.Error != nil {
		return wrap("update session", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("update session", ErrNotFound)
	}
	return nil
}

func (r *userRepo) TouchLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("last_seen_at", seenAt)
	if res.Error != nil {
		return wrap("update last seen", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("update last seen", ErrNotFound)
	}
	return nil
}
