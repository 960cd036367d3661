// Package service holds the business rules of both services.
//
// Handlers parse HTTP and call in; services validate input, enforce
// ownership and talk to the repository interfaces. Nothing here imports
// net/http: failures are returned as *apperror.AppError and mapped to status
// codes by the handler layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/unitedblog/internal/apperror"
	"github.com/sakif/unitedblog/internal/auth"
	"github.com/sakif/unitedblog/internal/model"
	"github.com/sakif/unitedblog/internal/repository"
)

const (
	MaxUsernameLength = 150
	MaxEmailLength    = 254
	MaxNameLength     = 150
	MinPasswordLength = 8
)

const (
	msgRequired        = "This field is required."
	msgAccountExists   = "A user with that username or email already exists."
	msgInvalidEmail    = "Enter a valid email address."
	msgInvalidLogin    = "No active account found with the given credentials"
	msgUsernameTaken   = "A user with that username already exists."
	msgEmailTaken      = "A user with that email already exists."
	msgPasswordsDiffer = "Password fields didn't match."
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// PasswordHasher is the part of auth.PasswordService the identity service uses.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// TokenIssuer is the part of auth.TokenService the identity service uses.
type TokenIssuer interface {
	IssuePair(userID int64) (access, refresh string, err error)
	IssueAccess(userID int64) (string, error)
	Verify(tokenStr string, want auth.TokenType) (int64, error)
}

// EventRecorder receives domain events for the metrics endpoint.
type EventRecorder interface {
	RecordRegistration()
	RecordTokenIssued(kind string)
	RecordLoginFailure()
	RecordPostWrite(op string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRegistration()      {}
func (nopRecorder) RecordTokenIssued(string) {}
func (nopRecorder) RecordLoginFailure()      {}
func (nopRecorder) RecordPostWrite(string)   {}

func recorderOrNop(rec EventRecorder) EventRecorder {
	if rec == nil {
		return nopRecorder{}
	}
	return rec
}

// IdentityService registers accounts, issues tokens and manages the
// caller's own profile.
type IdentityService struct {
	users     repository.UserRepository
	passwords PasswordHasher
	tokens    TokenIssuer
	events    EventRecorder
	logger    *slog.Logger
}

// NewIdentityService wires the identity service. events may be nil.
func NewIdentityService(users repository.UserRepository, passwords PasswordHasher, tokens TokenIssuer, events EventRecorder, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		events:    recorderOrNop(events),
		logger:    logger,
	}
}

// Register validates the payload, hashes the password and stores a new user.
// Duplicate usernames or emails are reported as validation errors on the
// offending field.
func (s *IdentityService) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	username := strings.TrimSpace(reg.Username)
	email := normalizeEmail(reg.Email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(reg.Password); err != nil {
		return nil, err
	}
	if reg.Password != reg.Password2 {
		return nil, apperror.ValidationFailed("password", msgPasswordsDiffer)
	}
	if err := validateName("first_name", reg.FirstName); err != nil {
		return nil, err
	}
	if err := validateName("last_name", reg.LastName); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, username, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, s.conflictError(ctx, username, email, 0)
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.events.RecordRegistration()
	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// ObtainTokenPair checks credentials and returns an access/refresh pair.
// Unknown users and wrong passwords produce the same Unauthorized error.
func (s *IdentityService) ObtainTokenPair(ctx context.Context, username, password string) (*model.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", msgRequired)
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", msgRequired)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.events.RecordLoginFailure()
			return nil, apperror.Unauthorized(msgInvalidLogin)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.events.RecordLoginFailure()
			s.logger.Warn("login rejected", slog.Int64("user_id", user.ID))
			return nil, apperror.Unauthorized(msgInvalidLogin)
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	access, refresh, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}

	s.events.RecordTokenIssued(string(auth.TokenAccess))
	s.events.RecordTokenIssued(string(auth.TokenRefresh))
	s.logger.Info("tokens issued", slog.Int64("user_id", user.ID))
	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (s *IdentityService) RefreshToken(ctx context.Context, refresh string) (*model.AccessToken, error) {
	if strings.TrimSpace(refresh) == "" {
		return nil, apperror.ValidationFailed("refresh", msgRequired)
	}

	userID, err := s.tokens.Verify(refresh, auth.TokenRefresh)
	if err != nil {
		return nil, apperror.Unauthorized(err.Error())
	}

	// The account must still exist.
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	s.events.RecordTokenIssued(string(auth.TokenAccess))
	return &model.AccessToken{Access: access}, nil
}

// GetProfile returns the caller's own account.
func (s *IdentityService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		// A valid token for a deleted or foreign account.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the fields present in patch to the caller's account.
// Absent and null fields keep their stored values. An empty patch returns the
// profile unchanged without writing.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID int64, patch model.ProfilePatch) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return user, nil
	}

	if patch.Username.Set {
		patch.Username.Value = strings.TrimSpace(patch.Username.Value)
		if err := validateUsername(patch.Username.Value); err != nil {
			return nil, err
		}
	}
	if patch.Email.Set {
		patch.Email.Value = normalizeEmail(patch.Email.Value)
		if err := validateEmail(patch.Email.Value); err != nil {
			return nil, err
		}
	}
	if patch.FirstName.Set {
		patch.FirstName.Value = strings.TrimSpace(patch.FirstName.Value)
		if err := validateName("first_name", patch.FirstName.Value); err != nil {
			return nil, err
		}
	}
	if patch.LastName.Set {
		patch.LastName.Value = strings.TrimSpace(patch.LastName.Value)
		if err := validateName("last_name", patch.LastName.Value); err != nil {
			return nil, err
		}
	}

	var username, email string
	if patch.Username.Set {
		username = patch.Username.Value
	}
	if patch.Email.Set {
		email = patch.Email.Value
	}
	if err := s.ensureAvailable(ctx, username, email, user.ID); err != nil {
		return nil, err
	}

	patch.Username.ApplyTo(&user.Username)
	patch.Email.ApplyTo(&user.Email)
	patch.FirstName.ApplyTo(&user.FirstName)
	patch.LastName.ApplyTo(&user.LastName)

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, s.conflictError(ctx, username, email, user.ID)
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("User not found")
		}
		s.logger.Error("failed to update profile",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.Int64("user_id", user.ID))
	return user, nil
}

// ensureAvailable reports a validation error if username or email belongs
// to a user other than excludeID. Empty arguments are skipped.
// conflictError names the field behind a unique-index violation by checking
// availability again. When the re-check cannot tell, no field is blamed.
func (s *IdentityService) conflictError(ctx context.Context, username, email string, excludeID int64) error {
	var appErr *apperror.AppError
	if err := s.ensureAvailable(ctx, username, email, excludeID); errors.As(err, &appErr) {
		return appErr
	}
	return apperror.ValidationFailed("", msgAccountExists)
}

func (s *IdentityService) ensureAvailable(ctx context.Context, username, email string, excludeID int64) error {
	if username != "" {
		taken, err := s.users.UsernameTaken(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("checking username: %w", err)
		}
		if taken {
			return apperror.ValidationFailed("username", msgUsernameTaken)
		}
	}
	if email != "" {
		taken, err := s.users.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("checking email: %w", err)
		}
		if taken {
			return apperror.ValidationFailed("email", msgEmailTaken)
		}
	}
	return nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", msgRequired)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Ensure this field has no more than %d characters.", MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		return apperror.ValidationFailed("username",
			"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	return nil
}

// normalizeEmail trims the address and lowercases the domain part.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", msgRequired)
	}
	if len(email) > MaxEmailLength {
		return apperror.ValidationFailed("email",
			fmt.Sprintf("Ensure this field has no more than %d characters.", MaxEmailLength))
	}
	// ParseAddress also accepts "Name <addr>"; only a bare address is valid here.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return apperror.ValidationFailed("email", msgInvalidEmail)
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return apperror.ValidationFailed("password", msgRequired)
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	case len(password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("This password is too long. It must be at most %d bytes.", auth.MaxPasswordBytes))
	case isNumeric(password):
		return apperror.ValidationFailed("password", "This password is entirely numeric.")
	}
	return nil
}

func validateName(field, value string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > MaxNameLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("Ensure this field has no more than %d characters.", MaxNameLength))
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
