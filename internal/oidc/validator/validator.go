// Package validator verifies ID tokens issued by the configured provider.
package validator

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/metrics"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/discovery"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
)

// DefaultClockSkew is the tolerance for iat values ahead of the local clock.
const DefaultClockSkew = 2 * time.Minute

// Config holds the expected token parameters.
type Config struct {
	Audience  string // discovery audience, used to locate jwks_uri
	Issuer    string
	ClientID  string
	ClockSkew time.Duration
}

// Validator checks ID tokens. It caches one remote key set per jwks_uri.
type Validator struct {
	cfg        Config
	discovery  *discovery.Client
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	keySets map[string]*oidc.RemoteKeySet
}

// New creates a Validator.
func New(cfg Config, disco *discovery.Client, httpClient *http.Client) *Validator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}

	return &Validator{
		cfg:        cfg,
		discovery:  disco,
		httpClient: httpClient,
		now:        time.Now,
		keySets:    make(map[string]*oidc.RemoteKeySet),
	}
}

// Validate verifies rawIDToken and returns its claims. Checks run in order and
// stop at the first failure: signature, issuer, audience, expiry and issue
// time, nonce. Errors wrap ErrValidation and one reason error.
func (v *Validator) Validate(ctx context.Context, rawIDToken, expectedNonce string) (*token.Claims, error) {
	claims, err := v.validate(ctx, rawIDToken, expectedNonce)
	if err != nil {
		reason := Reason(err)
		metrics.ValidationFailures.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("reason", reason).Msg("id token rejected")

		return nil, err
	}

	return claims, nil
}

func (v *Validator) validate(ctx context.Context, raw, expectedNonce string) (*token.Claims, error) {
	if raw == "" || strings.Count(raw, ".") != 2 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrMalformed)
	}

	doc, err := v.discovery.Get(ctx, v.cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrValidation, ErrSignature, err)
	}

	payload, err := v.keySet(doc.JWKSURI).VerifySignature(ctx, raw)
	if err != nil {
		// the provider may have moved its jwks_uri, rediscover on the next login
		v.discovery.Invalidate(v.cfg.Audience)

		return nil, fmt.Errorf("%w: %w: %w", ErrValidation, ErrSignature, err)
	}

	claims := new(token.Claims)
	if err = json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrValidation, ErrMalformed, err)
	}

	now := v.now()

	switch {
	case claims.Issuer != v.cfg.Issuer:
		return nil, fmt.Errorf("%w: %w: got %q", ErrValidation, ErrIssuer, claims.Issuer)
	case !claims.Audience.Contains(v.cfg.ClientID):
		return nil, fmt.Errorf("%w: %w: %v", ErrValidation, ErrAudience, []string(claims.Audience))
	case claims.Expiry == 0 || !now.Before(claims.Expiry.Time()):
		return nil, fmt.Errorf("%w: %w: exp %s", ErrValidation, ErrExpired, claims.Expiry.Time().UTC())
	case claims.IssuedAt == 0:
		return nil, fmt.Errorf("%w: %w: missing iat", ErrValidation, ErrMalformed)
	case claims.IssuedAt.Time().After(now.Add(v.cfg.ClockSkew)):
		return nil, fmt.Errorf("%w: %w: iat %s", ErrValidation, ErrIssuedInFuture, claims.IssuedAt.Time().UTC())
	case !NonceEqual(claims.Nonce, expectedNonce):
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrNonce)
	}

	return claims, nil
}

// NonceEqual compares two nonce values in constant time. Empty values never match.
func NonceEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (v *Validator) keySet(jwksURI string) *oidc.RemoteKeySet {
	v.mu.Lock()
	defer v.mu.Unlock()

	ks, ok := v.keySets[jwksURI]
	if !ok {
		// the key set refreshes lazily with this context, it must outlive requests
		ctx := httpclient.ClientContext(context.Background(), v.httpClient)
		ks = oidc.NewRemoteKeySet(ctx, jwksURI)
		v.keySets[jwksURI] = ks
	}

	return ks
}
