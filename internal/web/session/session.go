// Package session keeps the server side session of a logged in user.
//
// Sessions are JSON documents in a fiber storage backend keyed by the value
// of the "session" cookie.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/uniuri"
)

var (
	// ErrNotFound is returned for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")

	// ErrEmptyID is returned for an empty session ID.
	ErrEmptyID = errors.New("session id is empty")
)

// Data is the session payload.
type Data struct {
	Tokens     *token.Set `json:"tokens,omitempty"`
	UserInfo   string     `json:"userInfo,omitempty"`
	Introspect string     `json:"introspect,omitempty"`
	Revocation string     `json:"revocation,omitempty"`
	UserID     uint64     `json:"user_id"`
	Username   string     `json:"username"`
}

// Authenticated reports whether the session belongs to a logged in user
// holding an access token.
func (d *Data) Authenticated() bool {
	return d != nil && d.UserID > 0 && d.Tokens != nil && d.Tokens.AccessToken != ""
}

// Store reads and writes sessions.
type Store interface {
	Create(data *Data) (string, error)
	Get(id string) (*Data, error)
	Set(id string, data *Data) error
	Destroy(id string) error
}

// Manager is a Store on top of a fiber storage backend.
type Manager struct {
	storage fiber.Storage
	ttl     time.Duration
}

// New creates a Manager. A nil storage falls back to fiber's in-memory storage.
func New(storage fiber.Storage, ttl time.Duration) *Manager {
	store := session.New(session.Config{
		Storage:    storage,
		Expiration: ttl,
	})

	return &Manager{storage: store.Storage, ttl: ttl}
}

// Create stores data under a fresh session ID.
func (m *Manager) Create(data *Data) (string, error) {
	id, err := uniuri.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	if err = m.Set(id, data); err != nil {
		return "", err
	}

	return id, nil
}

// Get reads the session id.
func (m *Manager) Get(id string) (*Data, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	raw, err := m.storage.Get(id)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	data := new(Data)
	if err = json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return data, nil
}

// Set overwrites the session id and renews its lifetime.
func (m *Manager) Set(id string, data *Data) error {
	if id == "" {
		return ErrEmptyID
	}

	out, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return m.storage.Set(id, out, m.ttl)
}

// Destroy removes the session id.
func (m *Manager) Destroy(id string) error {
	if id == "" {
		return nil
	}

	return m.storage.Delete(id)
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
