package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/controller/user"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
)

// IdentityResolver maps validated claims to a local user.
type IdentityResolver interface {
	Resolve(ctx context.Context, claims *token.Claims) (*models.User, error)
}

// DBIdentityResolver resolves identities with gorm.
type DBIdentityResolver struct {
	db *gorm.DB
}

// NewIdentityResolver creates a gorm backed IdentityResolver.
func NewIdentityResolver(db *gorm.DB) *DBIdentityResolver {
	return &DBIdentityResolver{db: db}
}

// Resolve looks the user up by the lower cased email and verifies the
// subject against the stored hash. Unknown emails create a new user. Concurrent first logins end
// up with a single row, the losing insert re-reads the winner.
func (r *DBIdentityResolver) Resolve(ctx context.Context, claims *token.Claims) (*models.User, error) {
	if claims == nil || claims.Subject == "" || strings.TrimSpace(claims.Email) == "" {
		return nil, ErrIdentityClaims
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	db := r.db.WithContext(ctx)

	u, err := user.GetByUsername(db, email)
	if errors.Is(err, user.ErrUserNotFound) {
		created, createErr := user.Create(db, email, claims.Subject)
		if createErr == nil {
			log.Info().Str("username", created.Username).Uint64("user_id", created.ID).Msg("created user")

			return r.login(db, created)
		}

		// lost a concurrent first login, or a real failure
		if u, err = user.GetByUsername(db, email); err != nil {
			return nil, fmt.Errorf("create user %s: %w", email, createErr)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", email, err)
	}

	ok, err := u.VerifySubject(claims.Subject)
	if err != nil {
		return nil, err
	}

	if !ok {
		log.Warn().Str("username", u.Username).Msg("subject does not match the stored identity")

		return nil, ErrIdentityConflict
	}

	return r.login(db, u)
}

func (r *DBIdentityResolver) login(db *gorm.DB, u *models.User) (*models.User, error) {
	if !u.Active {
		return nil, ErrUserAccountDisabled
	}

	if err := user.TouchLogin(db, u, time.Now().UTC()); err != nil {
		log.Error().Err(err).Uint64("user_id", u.ID).Msg("failed to update last login")
	}

	return u, nil
}
