package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/auth"
	"github.com/sakif/unitedblog/internal/model"
	"github.com/sakif/unitedblog/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// In-memory stand-ins for the gorm stores. They copy on every read and
// write so a test cannot mutate stored state through a returned pointer.

var errDatabaseDown = errors.New("database is down")

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
	err    error // returned by every method when set

	// racer is stored just before the next Create or Update, as if a
	// concurrent request had committed between the availability check and
	// the write.
	racer *model.User
}

func (m *mockUserRepo) commitRacer() {
	if m.racer == nil {
		return
	}
	m.nextID++
	r := *m.racer
	r.ID = m.nextID
	m.users[r.ID] = &r
	m.racer = nil
}

// clashes reports whether another stored user has user's username or email,
// mimicking the unique indexes.
func (m *mockUserRepo) clashes(user *model.User) bool {
	for id, u := range m.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return true
		}
	}
	return false
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	m.commitRacer()
	if m.clashes(user) {
		return apperror.Conflict("user", user.Username)
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", "x")
	}
	result := *u
	return &result, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) UsernameTaken(_ context.Context, username string, excludeID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[user.ID]; !ok {
		return apperror.NotFound("user", "x")
	}
	m.commitRacer()
	if m.clashes(user) {
		return apperror.Conflict("user", user.Username)
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

type mockPostRepo struct {
	posts   map[int64]*model.Post
	nextID  int64
	err     error
	updates int
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[int64]*model.Post)}
}

func (m *mockPostRepo) Create(_ context.Context, post *model.Post) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	post.ID = m.nextID
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", "x")
	}
	result := *p
	return &result, nil
}

func (m *mockPostRepo) sorted() []model.Post {
	result := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockPostRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := m.sorted()
	if opts.Offset >= len(result) {
		return []model.Post{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockPostRepo) ListByAuthor(_ context.Context, authorID int64) ([]model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := []model.Post{}
	for _, p := range m.sorted() {
		if p.AuthorID == authorID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPostRepo) Update(_ context.Context, post *model.Post) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", "x")
	}
	m.updates++
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) Delete(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", "x")
	}
	delete(m.posts, id)
	return nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("service-test-secret-0123456789", auth.TokenOptions{})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func newTestPasswords(t *testing.T) *auth.PasswordService {
	t.Helper()
	ps, err := auth.NewPasswordService(4)
	if err != nil {
		t.Fatalf("NewPasswordService: %v", err)
	}
	return ps
}

// assertAppError fails unless err wraps sentinel and, when field is
// non-empty, names that field.
func assertAppError(t *testing.T, err, sentinel error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want %v", err, sentinel)
	}
	if field == "" {
		return
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an *apperror.AppError", err)
	}
	if appErr.Field != field {
		t.Errorf("Field = %q, want %q", appErr.Field, field)
	}
}

// countingRecorder tallies domain events.
type countingRecorder struct {
	registrations int
	tokens        map[string]int
	loginFailures int
	postWrites    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{tokens: map[string]int{}, postWrites: map[string]int{}}
}

func (c *countingRecorder) RecordRegistration()           { c.registrations++ }
func (c *countingRecorder) RecordTokenIssued(kind string) { c.tokens[kind]++ }
func (c *countingRecorder) RecordLoginFailure()           { c.loginFailures++ }
func (c *countingRecorder) RecordPostWrite(op string)     { c.postWrites[op]++ }
