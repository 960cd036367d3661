package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/auth"
	"github.com/sakif/unitedblog/internal/model"
)

// IdentityService is what IdentityHandler needs from the service layer.
type IdentityService interface {
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	ObtainTokenPair(ctx context.Context, username, password string) (*model.TokenPair, error)
	RefreshToken(ctx context.Context, refresh string) (*model.AccessToken, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, patch model.ProfilePatch) (*model.User, error)
}

// IdentityHandler serves account registration, token issuance and the
// caller's own profile.
type IdentityHandler struct {
	svc    IdentityService
	logger *slog.Logger
}

func NewIdentityHandler(svc IdentityService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{svc: svc, logger: logger}
}

// HandleRegister creates an account.
//
// HTTP: POST /register/
// BODY: {"username","email","password","password2","first_name","last_name"}
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), reg)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleObtainToken exchanges credentials for an access/refresh pair.
//
// HTTP: POST /token/
func (h *IdentityHandler) HandleObtainToken(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pair, err := h.svc.ObtainTokenPair(r.Context(), creds.Username, creds.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// HandleRefreshToken issues a new access token.
//
// HTTP: POST /token/refresh/
func (h *IdentityHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	access, err := h.svc.RefreshToken(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

// HandleGetProfile returns the authenticated caller.
//
// HTTP: GET /profile/
func (h *IdentityHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Authentication credentials were not provided."))
		return
	}

	user, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile applies a partial profile update. PUT and PATCH
// behave identically: absent or null fields are left unchanged.
//
// HTTP: PUT|PATCH /profile/
func (h *IdentityHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Authentication credentials were not provided."))
		return
	}

	var patch model.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
