package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/model"
)

func newTestPostService(t *testing.T) (*PostService, *mockPostRepo) {
	t.Helper()
	repo := newMockPostRepo()
	return NewPostService(repo, nil, discardLogger()), repo
}

func newPost(title, content string) model.NewPost {
	return model.NewPost{Title: model.Some(title), Content: model.Some(content)}
}

func mustCreatePost(t *testing.T, svc *PostService, authorID int64, title string) *model.Post {
	t.Helper()
	post, err := svc.Create(context.Background(), authorID, newPost(title, "content of "+title))
	if err != nil {
		t.Fatalf("Create(%q) error = %v", title, err)
	}
	return post
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreatePost(t *testing.T) {
	svc, repo := newTestPostService(t)

	post, err := svc.Create(context.Background(), 1, newPost("  A  ", "B"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if post.AuthorID != 1 {
		t.Errorf("AuthorID = %d, want 1", post.AuthorID)
	}
	if post.Title != "  A  " {
		t.Errorf("Title = %q, want it stored as sent", post.Title)
	}
	if len(repo.posts) != 1 {
		t.Errorf("repo has %d posts, want 1", len(repo.posts))
	}
}

func TestCreatePost_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        model.NewPost
		wantField string
	}{
		{"missing title", model.NewPost{Content: model.Some("B")}, "title"},
		{"title too long", newPost(strings.Repeat("t", MaxTitleLength+1), "B"), "title"},
		{"missing content", model.NewPost{Title: model.Some("A")}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestPostService(t)
			_, err := svc.Create(context.Background(), 1, tt.in)
			assertAppError(t, err, apperror.ErrValidation, tt.wantField)
			if len(repo.posts) != 0 {
				t.Error("rejected post must not be stored")
			}
		})
	}
}

func TestCreatePost_EmptyValuesStoredAsSent(t *testing.T) {
	tests := []struct {
		name           string
		title, content string
	}{
		{"empty content", "A", ""},
		{"empty title", "", "B"},
		{"whitespace title", "   ", "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestPostService(t)
			post, err := svc.Create(context.Background(), 1, newPost(tt.title, tt.content))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			stored := repo.posts[post.ID]
			if stored.Title != tt.title || stored.Content != tt.content {
				t.Errorf("stored (%q, %q), want (%q, %q)", stored.Title, stored.Content, tt.title, tt.content)
			}
		})
	}
}

func TestCreatePost_TitleAtLimit(t *testing.T) {
	svc, _ := newTestPostService(t)

	// Multibyte runes count once each.
	title := strings.Repeat("é", MaxTitleLength)
	if _, err := svc.Create(context.Background(), 1, newPost(title, "B")); err != nil {
		t.Errorf("Create() rejected a %d-character title: %v", MaxTitleLength, err)
	}
}

func TestCreatePost_RepositoryError(t *testing.T) {
	svc, repo := newTestPostService(t)
	repo.err = errDatabaseDown

	_, err := svc.Create(context.Background(), 1, newPost("A", "B"))
	if !errors.Is(err, errDatabaseDown) {
		t.Errorf("Create() error = %v, want wrapped errDatabaseDown", err)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetPost(t *testing.T) {
	svc, _ := newTestPostService(t)
	created := mustCreatePost(t, svc, 1, "hello")

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "hello" {
		t.Errorf("Title = %q", got.Title)
	}

	_, err = svc.Get(context.Background(), 999)
	assertAppError(t, err, apperror.ErrNotFound, "")
}

func TestListPosts_Pagination(t *testing.T) {
	svc, _ := newTestPostService(t)
	for i := 1; i <= 15; i++ {
		mustCreatePost(t, svc, int64(i%2+1), fmt.Sprintf("post %d", i))
	}

	tests := []struct {
		name      string
		skip      int
		limit     int
		wantCount int
		wantFirst int64
	}{
		{"zero limit is an empty page", 0, 0, 0, 0},
		{"explicit limit", 0, 5, 5, 1},
		{"skip", 10, 10, 5, 11},
		{"skip past end", 20, 5, 0, 0},
		{"max limit", 0, MaxListLimit, 15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := svc.List(context.Background(), tt.skip, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if posts == nil {
				t.Fatal("List() returned nil, want a slice")
			}
			if len(posts) != tt.wantCount {
				t.Fatalf("List() returned %d posts, want %d", len(posts), tt.wantCount)
			}
			if tt.wantCount > 0 && posts[0].ID != tt.wantFirst {
				t.Errorf("first ID = %d, want %d", posts[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestListPosts_InvalidArguments(t *testing.T) {
	tests := []struct {
		name        string
		skip, limit int
		wantField   string
	}{
		{"negative skip", -1, 10, "skip"},
		{"negative limit", 0, -5, "limit"},
		{"limit above maximum", 0, MaxListLimit + 1, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestPostService(t)
			_, err := svc.List(context.Background(), tt.skip, tt.limit)
			assertAppError(t, err, apperror.ErrValidation, tt.wantField)
		})
	}
}

func TestListMine(t *testing.T) {
	svc, _ := newTestPostService(t)
	mine1 := mustCreatePost(t, svc, 1, "mine")
	mustCreatePost(t, svc, 2, "theirs")
	mine2 := mustCreatePost(t, svc, 1, "also mine")

	posts, err := svc.ListMine(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(posts) != 2 || posts[0].ID != mine1.ID || posts[1].ID != mine2.ID {
		t.Errorf("ListMine() = %+v, want posts %d and %d", posts, mine1.ID, mine2.ID)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdatePost_PartialUpdate(t *testing.T) {
	svc, repo := newTestPostService(t)
	post := mustCreatePost(t, svc, 1, "original")

	got, err := svc.Update(context.Background(), 1, post.ID, model.PostPatch{Title: model.Some("renamed")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "renamed" {
		t.Errorf("Title = %q, want renamed", got.Title)
	}
	if repo.posts[post.ID].Content != "content of original" {
		t.Errorf("Content changed to %q", repo.posts[post.ID].Content)
	}
}

func TestUpdatePost_NoFieldsSkipsWrite(t *testing.T) {
	svc, repo := newTestPostService(t)
	post := mustCreatePost(t, svc, 1, "original")

	if _, err := svc.Update(context.Background(), 1, post.ID, model.PostPatch{}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if repo.updates != 0 {
		t.Errorf("repository Update called %d times, want 0", repo.updates)
	}
}

func TestUpdatePost_Errors(t *testing.T) {
	svc, _ := newTestPostService(t)
	post := mustCreatePost(t, svc, 1, "original")
	ctx := context.Background()

	_, err := svc.Update(ctx, 1, 999, model.PostPatch{Title: model.Some("x")})
	assertAppError(t, err, apperror.ErrNotFound, "")

	_, err = svc.Update(ctx, 2, post.ID, model.PostPatch{Title: model.Some("x")})
	assertAppError(t, err, apperror.ErrForbidden, "")

	// A non-owner sending an invalid body still learns only that it is forbidden.
	_, err = svc.Update(ctx, 2, post.ID, model.PostPatch{Title: model.Some("")})
	assertAppError(t, err, apperror.ErrForbidden, "")

	_, err = svc.Update(ctx, 1, post.ID, model.PostPatch{Title: model.Some(strings.Repeat("t", MaxTitleLength+1))})
	assertAppError(t, err, apperror.ErrValidation, "title")
}

func TestUpdatePost_EmptyValuesStoredAsSent(t *testing.T) {
	svc, repo := newTestPostService(t)
	post := mustCreatePost(t, svc, 1, "original")

	got, err := svc.Update(context.Background(), 1, post.ID, model.PostPatch{
		Title:   model.Some(""),
		Content: model.Some(""),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "" || got.Content != "" {
		t.Errorf("Update() = (%q, %q), want both empty", got.Title, got.Content)
	}
	if repo.updates != 1 {
		t.Errorf("repository Update called %d times, want 1", repo.updates)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeletePost(t *testing.T) {
	svc, repo := newTestPostService(t)
	post := mustCreatePost(t, svc, 1, "doomed")
	ctx := context.Background()

	err := svc.Delete(ctx, 2, post.ID)
	assertAppError(t, err, apperror.ErrForbidden, "")
	if _, ok := repo.posts[post.ID]; !ok {
		t.Fatal("forbidden delete removed the post")
	}

	if err := svc.Delete(ctx, 1, post.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := repo.posts[post.ID]; ok {
		t.Error("post still present after Delete")
	}

	err = svc.Delete(ctx, 1, post.ID)
	assertAppError(t, err, apperror.ErrNotFound, "")
}

// The example lifecycle: create as 1, update as 2, delete as 1, get.
func TestPostLifecycle(t *testing.T) {
	svc, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, 1, newPost("A", "B"))
	if err != nil || post.AuthorID != 1 {
		t.Fatalf("Create() = %+v, %v", post, err)
	}

	_, err = svc.Update(ctx, 2, post.ID, model.PostPatch{Title: model.Some("hijack")})
	assertAppError(t, err, apperror.ErrForbidden, "")

	if err := svc.Delete(ctx, 1, post.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err = svc.Get(ctx, post.ID)
	assertAppError(t, err, apperror.ErrNotFound, "")
}

func TestPostService_RecordsEvents(t *testing.T) {
	rec := newCountingRecorder()
	svc := NewPostService(newMockPostRepo(), rec, discardLogger())
	ctx := context.Background()

	post := mustCreatePost(t, svc, 1, "counted")
	if _, err := svc.Update(ctx, 1, post.ID, model.PostPatch{Content: model.Some("new body")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	_ = svc.Delete(ctx, 2, post.ID) // forbidden, not counted
	if err := svc.Delete(ctx, 1, post.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := map[string]int{"create": 1, "update": 1, "delete": 1}
	for op, n := range want {
		if rec.postWrites[op] != n {
			t.Errorf("postWrites[%s] = %d, want %d", op, rec.postWrites[op], n)
		}
	}
}
