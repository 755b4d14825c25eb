package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	orig := models.SubjectHashParams
	models.SubjectHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	t.Cleanup(func() { models.SubjectHashParams = orig })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	return db
}

func TestResolveCreatesOnce(t *testing.T) {
	db := setupTestDB(t)
	r := NewIdentityResolver(db)
	claims := &token.Claims{Subject: "u1", Email: "a@b.com"}

	first, err := r.Resolve(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", first.Username)
	assert.NotNil(t, first.LastLoginAt)

	second, err := r.Resolve(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveEmailIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	r := NewIdentityResolver(db)

	first, err := r.Resolve(context.Background(), &token.Claims{Subject: "u1", Email: "Jane.Doe@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", first.Username)

	second, err := r.Resolve(context.Background(), &token.Claims{Subject: "u1", Email: "jane.doe@example.COM"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = r.Resolve(context.Background(), &token.Claims{Subject: "u2", Email: "JANE.DOE@example.com"})
	require.ErrorIs(t, err, ErrIdentityConflict)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveErrors(t *testing.T) {
	db := setupTestDB(t)
	r := NewIdentityResolver(db)

	_, err := r.Resolve(context.Background(), &token.Claims{Subject: "u1", Email: "a@b.com"})
	require.NoError(t, err)

	disabled, err := r.Resolve(context.Background(), &token.Claims{Subject: "u2", Email: "off@b.com"})
	require.NoError(t, err)
	require.NoError(t, db.Model(disabled).Update("active", false).Error)

	tests := []struct {
		name   string
		claims *token.Claims
		want   error
	}{
		{name: "nil claims", claims: nil, want: ErrIdentityClaims},
		{name: "missing email", claims: &token.Claims{Subject: "u1"}, want: ErrIdentityClaims},
		{name: "missing subject", claims: &token.Claims{Email: "a@b.com"}, want: ErrIdentityClaims},
		{name: "other subject", claims: &token.Claims{Subject: "u9", Email: "a@b.com"}, want: ErrIdentityConflict},
		{name: "disabled", claims: &token.Claims{Subject: "u2", Email: "off@b.com"}, want: ErrUserAccountDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := r.Resolve(context.Background(), tt.claims)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, u)
		})
	}
}

func TestResolveConcurrentFirstLogin(t *testing.T) {
	db := setupTestDB(t)
	r := NewIdentityResolver(db)
	claims := &token.Claims{Subject: "u1", Email: "a@b.com"}

	const workers = 8

	var (
		wg  sync.WaitGroup
		ids = make([]uint64, workers)
	)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			u, err := r.Resolve(context.Background(), claims)
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}()
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
