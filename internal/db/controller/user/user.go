// Package user provides the database operations for local identities.
package user

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
)

const (
	usernameQueryPattern = "username = ?"
)

var (
	// ErrUserNotFound is returned when no user matches the query.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameEmpty is returned when a username is required but empty.
	ErrUsernameEmpty = errors.New("username cannot be empty")
	// ErrSubjectEmpty is returned when a user is created without subject.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrUserAlreadyExists is returned when the username is already taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// GetByUsername retrieves a user by its username.
func GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if username == "" {
		return nil, ErrUsernameEmpty
	}

	var u models.User

	result := db.Where(usernameQueryPattern, username).First(&u)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, result.Error
	}

	return &u, nil
}

// Create stores a new active user. Username and email are both set to email.
// A unique constraint violation is reported as ErrUserAlreadyExists.
func Create(db *gorm.DB, email, subject string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if email == "" {
		return nil, ErrUsernameEmpty
	}

	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	hash, err := models.HashSubject(subject)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Active:      true,
		Username:    email,
		Email:       email,
		Subject:     subject,
		SubjectHash: hash,
	}

	result := db.Create(u)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}

		return nil, result.Error
	}

	return u, nil
}

// TouchLogin sets the last login timestamp of the user.
func TouchLogin(db *gorm.DB, u *models.User, at time.Time) error {
	if db == nil {
		return ErrDBNil
	}

	u.LastLoginAt = &at

	return db.Model(u).Update("last_login_at", at).Error
}
