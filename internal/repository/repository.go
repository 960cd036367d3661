// Package repository declares the persistence contracts the services depend on.
//
// Services receive these interfaces, never a concrete store, so tests can
// inject in-memory fakes and production can inject the gorm-backed stores
// from repository/gormrepo.
package repository

import (
	"context"

	"github.com/sakif/unitedblog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists Identity Service accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UsernameTaken and EmailTaken ignore the row with id excludeID,
	// so a user can "change" a field to its current value.
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, user *model.User) error
}

// PostRepository persists Content Service posts.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
}
