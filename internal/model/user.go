// Package model holds the rows and request payloads shared by both services.
package model

import "time"

// User represents a registered account owned by the Identity Service.
//
// The `gorm:"..."` tags describe the column layout to the ORM; the `json:"..."`
// tags describe the wire format. PasswordHash is tagged `json:"-"` so it can
// never leak into a response, even if a handler serializes the whole struct.
type User struct {
	ID           int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username"   gorm:"size:150;not null;uniqueIndex"`
	Email        string    `json:"email"      gorm:"size:254;not null;uniqueIndex"`
	FirstName    string    `json:"first_name" gorm:"size:150;not null"`
	LastName     string    `json:"last_name"  gorm:"size:150;not null"`
	PasswordHash string    `json:"-"          gorm:"column:password_hash;not null"`
	DateJoined   time.Time `json:"date_joined" gorm:"column:date_joined;autoCreateTime"`
	UpdatedAt    time.Time `json:"-"          gorm:"column:updated_at;autoUpdateTime"`
}

// Registration is the payload accepted by POST /register/.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProfilePatch is the payload accepted by PUT /profile/.
// Only fields that are present (and non-null) are applied.
type ProfilePatch struct {
	Username  Optional[string] `json:"username"`
	Email     Optional[string] `json:"email"`
	FirstName Optional[string] `json:"first_name"`
	LastName  Optional[string] `json:"last_name"`
}

// Empty reports whether the patch carries no changes.
func (p ProfilePatch) Empty() bool {
	return !p.Username.Set && !p.Email.Set && !p.FirstName.Set && !p.LastName.Set
}

// TokenPair is returned by POST /token/.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AccessToken is returned by POST /token/refresh/.
type AccessToken struct {
	Access string `json:"access"`
}

// Credentials is the payload accepted by POST /token/.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the payload accepted by POST /token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}
