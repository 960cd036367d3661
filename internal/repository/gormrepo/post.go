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

// compile-time check that *PostDB implements repository.PostRepository
var _ repository.PostRepository = (*PostDB)(nil)

// PostDB is the gorm-backed post store.
type PostDB struct {
	db *gorm.DB
}

// Create inserts a post. On success post.ID and both timestamps are set
// on the caller's struct.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	if err := p.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("gormrepo: creating post: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound if the post does not exist.
func (p *PostDB) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var post model.Post
	err := p.db.WithContext(ctx).Where("id = ?", id).Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("gormrepo: getting post %d: %w", id, err)
	}
	return &post, nil
}

// List returns one page of posts in id order. A non-positive limit is an
// empty page.
func (p *PostDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		return []model.Post{}, nil
	}
	offset := max(opts.Offset, 0)

	posts := make([]model.Post, 0, limit)
	err := p.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("gormrepo: listing posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor returns every post owned by authorID in id order.
func (p *PostDB) ListByAuthor(ctx context.Context, authorID int64) ([]model.Post, error) {
	posts := make([]model.Post, 0)
	err := p.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("gormrepo: listing posts for author %d: %w", authorID, err)
	}
	return posts, nil
}

// Update writes title and content and bumps updated_at. The author is
// never rewritten: ownership is fixed at creation.
func (p *PostDB) Update(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now()

	result := p.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]any{
			"title":      post.Title,
			"content":    post.Content,
			"updated_at": post.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("gormrepo: updating post %d: %w", post.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
	}
	return nil
}

// Delete removes a post. Same RowsAffected check as Update.
func (p *PostDB) Delete(ctx context.Context, id int64) error {
	result := p.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if result.Error != nil {
		return fmt.Errorf("gormrepo: deleting post %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return nil
}
