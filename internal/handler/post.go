package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/auth"
	"github.com/sakif/unitedblog/internal/model"
)

// PostService is what PostHandler needs from the service layer.
type PostService interface {
	List(ctx context.Context, skip, limit int) ([]model.Post, error)
	Get(ctx context.Context, id int64) (*model.Post, error)
	Create(ctx context.Context, authorID int64, in model.NewPost) (*model.Post, error)
	Update(ctx context.Context, callerID, id int64, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, callerID, id int64) error
	ListMine(ctx context.Context, callerID int64) ([]model.Post, error)
}

// defaultListLimit applies when the limit query parameter is absent.
const defaultListLimit = 10

// PostHandler serves /api/posts.
type PostHandler struct {
	svc    PostService
	logger *slog.Logger
}

func NewPostHandler(svc PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{svc: svc, logger: logger}
}

// HandleList returns a page of posts.
//
// HTTP: GET /api/posts/?skip=0&limit=10
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	posts, err := h.svc.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate stores a post owned by the caller. Any author_id in the
// body is ignored.
//
// HTTP: POST /api/posts/
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, h.logger, errNoCaller)
		return
	}

	var in model.NewPost
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate applies a partial update to a post the caller owns.
//
// HTTP: PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, h.logger, errNoCaller)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var patch model.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.svc.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post the caller owns.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, h.logger, errNoCaller)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMine returns every post the caller wrote.
//
// HTTP: GET /api/posts/user/me
func (h *PostHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, h.logger, errNoCaller)
		return
	}

	posts, err := h.svc.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

var errNoCaller = apperror.Unauthorized("Authentication credentials were not provided.")

func callerID(r *http.Request) (int64, bool) {
	return auth.UserIDFromContext(r.Context())
}
