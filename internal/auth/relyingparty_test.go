package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/oidctest"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/validator"
)

func testOIDCConfig(p *oidctest.Provider) *config.OIDC {
	return &config.OIDC{
		ClientID:          oidctest.ClientID,
		ClientSecret:      oidctest.ClientSecret,
		Audience:          p.URL(),
		Issuer:            p.URL(),
		RedirectURI:       "http://localhost:8080/callback",
		Scopes:            []string{"openid", "profile", "email"},
		DiscoveryPath:     config.DefaultDiscoveryPath,
		DiscoveryTTL:      time.Hour,
		DiscoveryMaxStale: 24 * time.Hour,
		HTTPTimeout:       5 * time.Second,
		ClockSkew:         2 * time.Minute,
	}
}

func setupRelyingParty(t *testing.T) (*oidctest.Provider, *RelyingParty) {
	t.Helper()

	p := oidctest.New(t)
	rp := NewRelyingParty(testOIDCConfig(p), NewIdentityResolver(setupTestDB(t)), p.Client())

	return p, rp
}

// login runs NewAuthRequest and a matching callback.
func login(t *testing.T, p *oidctest.Provider, rp *RelyingParty) (*AuthRequest, CallbackResult) {
	t.Helper()

	req, err := rp.NewAuthRequest(context.Background())
	require.NoError(t, err)
	p.SetNonce(req.Nonce)

	return req, rp.HandleCallback(context.Background(), CallbackInput{
		Code:        oidctest.Code,
		State:       req.State,
		CookieState: req.State,
		CookieNonce: req.Nonce,
	})
}

func payload(t *testing.T, raw string) map[string]any {
	t.Helper()

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	return m
}

func TestNewAuthRequest(t *testing.T) {
	p, rp := setupRelyingParty(t)
	rp.cfg.IDP = "0oa-idp"

	a, err := rp.NewAuthRequest(context.Background())
	require.NoError(t, err)

	b, err := rp.NewAuthRequest(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.State, b.State)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.State, a.Nonce)

	u, err := url.Parse(a.URL)
	require.NoError(t, err)
	assert.Equal(t, p.URL()+"/v1/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, oidctest.ClientID, q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, a.State, q.Get("state"))
	assert.Equal(t, a.Nonce, q.Get("nonce"))
	assert.Equal(t, "0oa-idp", q.Get("idp"))

	raw, err := base64.RawURLEncoding.DecodeString(a.RedirectParams)
	require.NoError(t, err)

	var params redirectParams
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, "code", params.ResponseType)
	assert.Equal(t, p.URL(), params.Issuer)

	assert.Equal(t, 1, p.DiscoveryRequests(), "discovery is cached")
}

func TestHandleCallbackAuthenticated(t *testing.T) {
	p, rp := setupRelyingParty(t)

	_, res := login(t, p, rp)
	require.NoError(t, res.Err)
	require.True(t, res.Authenticated())

	assert.Equal(t, oidctest.AccessToken, res.Tokens.AccessToken)
	assert.Equal(t, oidctest.RefreshToken, res.Tokens.RefreshToken)
	require.NotEmpty(t, res.Tokens.IDToken)
	require.NotNil(t, res.Tokens.Claims)
	assert.Equal(t, oidctest.Email, res.User.Username)

	got, err := json.Marshal(res.Tokens.Claims)
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(got, &claims))
	assert.Equal(t, payload(t, res.Tokens.IDToken), claims, "claims equal the token payload")

	form := p.LastTokenForm()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, oidctest.Code, form.Get("code"))
	assert.Equal(t, "http://localhost:8080/callback", form.Get("redirect_uri"))
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	p, rp := setupRelyingParty(t)

	tests := []struct {
		name string
		in   CallbackInput
	}{
		{name: "different", in: CallbackInput{Code: oidctest.Code, State: "a", CookieState: "b"}},
		{name: "missing cookie", in: CallbackInput{Code: oidctest.Code, State: "a"}},
		{name: "missing query", in: CallbackInput{Code: oidctest.Code, CookieState: "a"}},
		{name: "both empty", in: CallbackInput{Code: oidctest.Code}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rp.HandleCallback(context.Background(), tt.in)
			assert.Equal(t, OutcomeStateMismatch, res.Outcome)
			require.ErrorIs(t, res.Err, ErrStateMismatch)
			assert.Nil(t, res.Tokens)
			assert.Nil(t, res.User)
		})
	}

	assert.Zero(t, p.TokenRequests(), "no exchange after a state mismatch")
	assert.Zero(t, p.DiscoveryRequests(), "no network call before the state check")
}

func TestHandleCallbackFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(p *oidctest.Provider, in *CallbackInput)
		outcome Outcome
		err     error
	}{
		{
			name: "provider error",
			prepare: func(_ *oidctest.Provider, in *CallbackInput) {
				in.Code = ""
				in.Error = "access_denied"
			},
			outcome: OutcomeExchangeFailed,
			err:     ErrProviderError,
		},
		{
			name:    "discovery fails",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) { p.SetDiscoveryStatus(http.StatusInternalServerError) },
			outcome: OutcomeDiscoveryFailed,
		},
		{
			name:    "token endpoint fails",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) { p.SetTokenStatus(http.StatusInternalServerError) },
			outcome: OutcomeExchangeFailed,
			err:     token.ErrExchange,
		},
		{
			name:    "wrong code",
			prepare: func(_ *oidctest.Provider, in *CallbackInput) { in.Code = "wrong" },
			outcome: OutcomeExchangeFailed,
			err:     token.ErrExchange,
		},
		{
			name:    "no id token",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) { p.OmitIDToken() },
			outcome: OutcomeNoIDToken,
			err:     ErrNoIDToken,
		},
		{
			name:    "nonce mismatch",
			prepare: func(_ *oidctest.Provider, in *CallbackInput) { in.CookieNonce = "other" },
			outcome: OutcomeValidationFailed,
			err:     validator.ErrNonce,
		},
		{
			name: "audience mismatch",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) {
				p.SetClaims(map[string]any{"aud": "someone-else"})
			},
			outcome: OutcomeValidationFailed,
			err:     validator.ErrAudience,
		},
		{
			name: "expired",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) {
				p.SetClaims(map[string]any{"exp": time.Now().Add(-time.Minute).Unix()})
			},
			outcome: OutcomeValidationFailed,
			err:     validator.ErrExpired,
		},
		{
			name: "no email claim",
			prepare: func(p *oidctest.Provider, _ *CallbackInput) {
				p.SetClaims(map[string]any{"email": nil})
			},
			outcome: OutcomeIdentityUnresolved,
			err:     ErrIdentityClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rp := setupRelyingParty(t)

			in := CallbackInput{Code: oidctest.Code, State: "s", CookieState: "s", CookieNonce: "n"}
			p.SetNonce("n")
			tt.prepare(p, &in)

			res := rp.HandleCallback(context.Background(), in)
			assert.Equal(t, tt.outcome, res.Outcome)
			require.Error(t, res.Err)

			if tt.err != nil {
				require.ErrorIs(t, res.Err, tt.err)
			}

			assert.False(t, res.Authenticated())
			assert.Nil(t, res.Tokens)
			assert.Nil(t, res.User)
		})
	}
}

func TestHandleCallbackIdentityConflict(t *testing.T) {
	p, rp := setupRelyingParty(t)

	_, res := login(t, p, rp)
	require.True(t, res.Authenticated())

	p.SetClaims(map[string]any{"sub": "someone-else"})

	_, res = login(t, p, rp)
	assert.Equal(t, OutcomeIdentityUnresolved, res.Outcome)
	require.ErrorIs(t, res.Err, ErrIdentityConflict)
}

func TestResourceCalls(t *testing.T) {
	p, rp := setupRelyingParty(t)
	ctx := context.Background()

	info, err := rp.Userinfo(ctx, oidctest.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, oidctest.Email, info["email"])

	in, err := rp.Introspect(ctx, oidctest.AccessToken)
	require.NoError(t, err)
	assert.True(t, in.Active)

	rev, err := rp.Revoke(ctx, oidctest.AccessToken)
	require.NoError(t, err)
	assert.True(t, rev.Revoked)
	assert.Equal(t, []string{oidctest.AccessToken}, p.Revoked())
}

func TestLogoutURL(t *testing.T) {
	_, rp := setupRelyingParty(t)
	ctx := context.Background()

	_, ok := rp.LogoutURL(ctx, "id-token", "http://localhost:8080/")
	assert.False(t, ok, "disabled by default")

	rp.cfg.EndSessionLogout = true

	_, ok = rp.LogoutURL(ctx, "", "http://localhost:8080/")
	assert.False(t, ok, "needs an id token hint")

	target, ok := rp.LogoutURL(ctx, "id-token", "http://localhost:8080/")
	require.True(t, ok)

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "/v1/logout", u.Path)
	assert.Equal(t, "id-token", u.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:8080/", u.Query().Get("post_logout_redirect_uri"))
}

func TestStateEqual(t *testing.T) {
	assert.True(t, StateEqual("abc", "abc"))
	assert.False(t, StateEqual("abc", "abd"))
	assert.False(t, StateEqual("", ""))
	assert.False(t, StateEqual("abc", ""))
}
