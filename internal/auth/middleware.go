package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// contextKey keeps our context values out of reach of other packages.
type contextKey string

const (
	userIDKey   contextKey = "userID"
	userSlotKey contextKey = "userSlot"
)

type userSlot struct {
	id int64
}

// Verifier is the slice of TokenService the middleware needs.
type Verifier interface {
	Verify(tokenStr string, want TokenType) (int64, error)
}

var errNoCredentials = errors.New("Authentication credentials were not provided.")

// RequireBearer rejects requests without a valid access token in the
// Authorization header. On success the user id is stored in the request
// context for UserIDFromContext.
//
// Failures answer 401 with a "WWW-Authenticate: Bearer" challenge and the
// same JSON error envelope the handlers use.
func RequireBearer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			userID, err := v.Verify(raw, TokenAccess)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			if slot, ok := r.Context().Value(userSlotKey).(*userSlot); ok {
				slot.id = userID
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying an authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or (0, false) for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// TrackUser lets an outer middleware learn which user a request was
// authenticated as. RequireBearer runs deeper in the chain on a derived
// context, so the id is reported through a slot carried by ctx. The returned
// func reports (0, false) until authentication succeeds.
func TrackUser(ctx context.Context) (context.Context, func() (int64, bool)) {
	slot := &userSlot{}
	return context.WithValue(ctx, userSlotKey, slot), func() (int64, bool) {
		return slot.id, slot.id > 0
	}
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errNoCredentials
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("Authorization header must use the Bearer scheme.")
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", errors.New("Invalid Authorization header. Credentials string should not contain spaces.")
	}
	return token, nil
}

type unauthorizedBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(unauthorizedBody{Error: "unauthorized", Message: message})
}
