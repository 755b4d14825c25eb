// Package models contains the gorm models of the relying party.
package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/pkg/errors"
)

// SubjectHashParams are the argon2id parameters used for subject hashes.
// Tests may swap them for cheaper values.
var SubjectHashParams = argon2id.DefaultParams

// User is the local identity materialized from validated ID token claims.
// Username always equals the email claim, Subject is the provider "sub".
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the identity may log in.
	Active bool `gorm:"not null;default:true"`
	// Username is the unique login name, set to the email claim.
	Username string `gorm:"unique;size:255;not null"`
	// Email is the email claim of the first login.
	Email string `gorm:"size:255;not null"`
	// Subject is the provider subject identifier.
	Subject string `gorm:"size:255;not null;index"`
	// SubjectHash is the argon2id hash of Subject, used to verify later logins.
	SubjectHash string `gorm:"size:255;not null"`
	// LastLoginAt is updated on every successful callback.
	LastLoginAt *time.Time
	// CreatedAt is managed by gorm.
	CreatedAt time.Time
	// UpdatedAt is managed by gorm.
	UpdatedAt time.Time
}

// HashSubject hashes a subject identifier with argon2id.
func HashSubject(subject string) (string, error) {
	hash, err := argon2id.CreateHash(subject, SubjectHashParams)
	if err != nil {
		return "", errors.Wrap(err, "hash subject")
	}

	return hash, nil
}

// VerifySubject reports whether subject matches the stored subject hash.
// The comparison is constant time.
func (u *User) VerifySubject(subject string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(subject, u.SubjectHash)
	if err != nil {
		return false, errors.Wrap(err, "verify subject")
	}

	return match, nil
}
