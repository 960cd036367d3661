package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/model"
	"github.com/sakif/unitedblog/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the gorm-backed user store.
type UserDB struct {
	db *gorm.DB
}

// Create inserts a new user. On success user.ID, DateJoined and UpdatedAt
// are populated. A duplicate username or email yields apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.DateJoined = now
	user.UpdatedAt = now

	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("gormrepo: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := u.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("gormrepo: getting user %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername is used by the credential check.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := u.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("gormrepo: getting user %q: %w", username, err)
	}
	return &user, nil
}

func (u *UserDB) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return u.taken(ctx, "username", username, excludeID)
}

func (u *UserDB) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return u.taken(ctx, "email", email, excludeID)
}

// taken counts rows where column matches value case-insensitively.
// column is always a literal from this file, never caller input.
func (u *UserDB) taken(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	var count int64
	err := u.db.WithContext(ctx).
		Model(&model.User{}).
		Where("LOWER("+column+") = LOWER(?) AND id <> ?", value, excludeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gormrepo: checking %s availability: %w", column, err)
	}
	return count > 0, nil
}

// Update writes the profile columns of an existing user.
// The password hash and join date are never touched here.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result := u.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"username":   user.Username,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"updated_at": user.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("gormrepo: updating user %d: %w", user.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	}
	return nil
}
