package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/model"
	"github.com/sakif/unitedblog/internal/repository"
)

const (
	MaxTitleLength = 200
	MaxListLimit   = 100
)

// PostService implements the Content Service operations. Ownership is a
// plain comparison between the caller's token user id and Post.AuthorID.
type PostService struct {
	repo   repository.PostRepository
	events EventRecorder
	logger *slog.Logger
}

// NewPostService wires the post service. events may be nil.
func NewPostService(repo repository.PostRepository, events EventRecorder, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		events: recorderOrNop(events),
		logger: logger,
	}
}

// List returns a page of posts ordered by id. Negative skip, and a limit
// outside [0, MaxListLimit], are validation errors. limit 0 is an empty page.
func (s *PostService) List(ctx context.Context, skip, limit int) ([]model.Post, error) {
	if skip < 0 {
		return nil, apperror.ValidationFailed("skip", "skip must be zero or greater")
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, apperror.ValidationFailed("limit",
			fmt.Sprintf("limit must be between 0 and %d", MaxListLimit))
	}
	if limit == 0 {
		return []model.Post{}, nil
	}

	posts, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: skip})
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Get returns one post or apperror.ErrNotFound.
func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new post owned by authorID. The author is always the
// verified caller, never a value from the request body.
func (s *PostService) Create(ctx context.Context, authorID int64, in model.NewPost) (*model.Post, error) {
	if !in.Title.Set {
		return nil, apperror.ValidationFailed("title", msgRequired)
	}
	if !in.Content.Set {
		return nil, apperror.ValidationFailed("content", msgRequired)
	}
	if err := validateTitle(in.Title.Value); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    in.Title.Value,
		Content:  in.Content.Value,
		AuthorID: authorID,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.Int64("author_id", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.events.RecordPostWrite("create")
	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		slog.Int64("author_id", post.AuthorID),
	)
	return post, nil
}

// Update applies the fields present in patch. Missing post → NotFound,
// caller not the author → Forbidden, checked in that order.
func (s *PostService) Update(ctx context.Context, callerID, id int64, patch model.PostPatch) (*model.Post, error) {
	post, err := s.owned(ctx, callerID, id, "Not authorized to update this post")
	if err != nil {
		return nil, err
	}

	if patch.Title.Set {
		if err := validateTitle(patch.Title.Value); err != nil {
			return nil, err
		}
	}

	changed := patch.Title.ApplyTo(&post.Title)
	changed = patch.Content.ApplyTo(&post.Content) || changed
	if !changed {
		return post, nil
	}

	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update post",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.events.RecordPostWrite("update")
	s.logger.Info("post updated", slog.Int64("id", post.ID))
	return post, nil
}

// Delete removes a post the caller owns.
func (s *PostService) Delete(ctx context.Context, callerID, id int64) error {
	if _, err := s.owned(ctx, callerID, id, "Not authorized to delete this post"); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete post",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting post: %w", err)
	}

	s.events.RecordPostWrite("delete")
	s.logger.Info("post deleted", slog.Int64("id", id), slog.Int64("author_id", callerID))
	return nil
}

// ListMine returns every post authored by callerID, ordered by id.
func (s *PostService) ListMine(ctx context.Context, callerID int64) ([]model.Post, error) {
	posts, err := s.repo.ListByAuthor(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to list posts by author",
			slog.Int64("author_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing posts for author %d: %w", callerID, err)
	}
	return posts, nil
}

func (s *PostService) owned(ctx context.Context, callerID, id int64, denied string) (*model.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID {
		s.logger.Warn("ownership check failed",
			slog.Int64("id", id),
			slog.Int64("caller_id", callerID),
		)
		return nil, apperror.Forbidden(denied)
	}
	return post, nil
}

// validateTitle enforces the column width only; titles are stored as sent.
func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("Ensure this field has no more than %d characters.", MaxTitleLength))
	}
	return nil
}
