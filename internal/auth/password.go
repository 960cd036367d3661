package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
// Roughly 250ms per hash on current server hardware.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs would be silently
// truncated, so Hash refuses them.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// The cost is injectable so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService using cost. Zero selects
// DefaultCost.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// Hash hashes plaintext with bcrypt. The result embeds salt and cost:
//
//	$2a$12$<22-char salt><31-char hash>
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A wrong password yields
// ErrPasswordMismatch; a corrupt hash yields a different error.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
