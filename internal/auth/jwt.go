// Package auth issues and verifies the bearer tokens shared by the identity
// and content services, and hashes account passwords.
//
// TOKEN FLOW:
//  1. The identity service checks a username/password and issues an access
//     token plus a longer-lived refresh token.
//  2. The client sends the access token as "Authorization: Bearer <jwt>".
//  3. Either service verifies the signature locally with the shared secret.
//     There is no call back to the issuer and no revocation list.
//
// Payload shape:
//
//	{"user_id": 42, "token_type": "access", "jti": "<xid>", "iat": ..., "exp": ...}
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// ErrInvalidToken is wrapped by every verification failure. Its text doubles
// as the prefix of the message returned to clients.
var ErrInvalidToken = errors.New("Invalid token")

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// TokenOptions configures a TokenService. Zero values fall back to HS256,
// a 60 minute access lifetime and a 24 hour refresh lifetime.
type TokenOptions struct {
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService signs and verifies HMAC JWTs with a single configured
// algorithm. Tokens signed with any other algorithm are rejected.
type TokenService struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string, opts TokenOptions) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}

	method, err := signingMethod(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	s := &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = 60 * time.Minute
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = 24 * time.Hour
	}
	return s, nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(alg) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("auth: unsupported JWT algorithm %q", alg)
	}
}

// Algorithm reports the configured signing algorithm name.
func (s *TokenService) Algorithm() string { return s.method.Alg() }

// claims is the payload written by this package. Verification reads tokens
// through jwt.MapClaims instead so that user_id may arrive as a number or a
// numeric string from other issuers.
type claims struct {
	UserID    int64     `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// IssuePair returns a fresh access token and refresh token for userID.
func (s *TokenService) IssuePair(userID int64) (access, refresh string, err error) {
	access, err = s.issue(userID, TokenAccess, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.issue(userID, TokenRefresh, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssueAccess returns a new access token for userID.
func (s *TokenService) IssueAccess(userID int64) (string, error) {
	return s.issue(userID, TokenAccess, s.accessTTL)
}

func (s *TokenService) issue(userID int64, typ TokenType, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenStr and returns the user id
// it carries.
//
// VALIDATION RULES:
//   - the header algorithm must equal the configured one ("none" and
//     asymmetric algorithms are refused before the key is consulted)
//   - "exp" is enforced only when present
//   - "user_id" must be present and hold a positive integer
//   - want == TokenAccess rejects refresh tokens; tokens without a
//     "token_type" claim are accepted as access tokens
//   - want == TokenRefresh requires token_type "refresh"
func (s *TokenService) Verify(tokenStr string, want TokenType) (int64, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return 0, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	token, err := jwt.Parse(
		tokenStr,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return 0, fmt.Errorf("%w: signature verification failed", ErrInvalidToken)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: unreadable claims", ErrInvalidToken)
	}

	typ, _ := mc["token_type"].(string)
	switch want {
	case TokenRefresh:
		if TokenType(typ) != TokenRefresh {
			return 0, fmt.Errorf("%w: token is not a refresh token", ErrInvalidToken)
		}
	default:
		if TokenType(typ) == TokenRefresh {
			return 0, fmt.Errorf("%w: refresh tokens cannot be used for authentication", ErrInvalidToken)
		}
	}

	return userIDFromClaims(mc)
}

func userIDFromClaims(mc jwt.MapClaims) (int64, error) {
	raw, ok := mc["user_id"]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: user_id not found", ErrInvalidToken)
	}

	var (
		id  int64
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		id, err = v.Int64()
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user_id is not a valid identifier", ErrInvalidToken)
	}
	return id, nil
}
