// Package oidctest provides a disposable identity provider for tests.
//
// The provider serves discovery, authorize, token, JWKS, userinfo,
// introspection, revocation and end session endpoints from an httptest
// server and signs ID tokens with a generated RSA key.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

// Defaults used by a new Provider.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	Code         = "abc"
	AccessToken  = "access-token-1"
	RefreshToken = "refresh-token-1"
	Subject      = "u1"
	Email        = "a@b.com"

	keyID = "test-key"
)

// Provider is a fake OpenID Connect provider. All setters are safe for
// concurrent use with running requests.
type Provider struct {
	t      *testing.T
	server *httptest.Server

	key     *rsa.PrivateKey
	foreign *rsa.PrivateKey

	mu                sync.Mutex
	clientID          string
	clientSecret      string
	code              string
	nonce             string
	claimOverrides    map[string]any
	omitIDToken       bool
	omitOptional      bool
	tokenStatus       int
	userinfo          map[string]any
	userinfoStatus    int
	introspection     map[string]any
	revokeStatus      int
	revokeBody        string
	discoveryStatus   int
	tokenRequests     int
	discoveryRequests int
	lastAuthQuery     url.Values
	lastTokenForm     url.Values
	revoked           []string
}

// New starts a provider and stops it on test cleanup.
func New(t *testing.T) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048) //nolint:mnd
	require.NoError(t, err)

	foreign, err := rsa.GenerateKey(rand.Reader, 2048) //nolint:mnd
	require.NoError(t, err)

	p := &Provider{
		t:            t,
		key:          key,
		foreign:      foreign,
		clientID:     ClientID,
		clientSecret: ClientSecret,
		code:         Code,
		userinfo: map[string]any{
			"sub":   Subject,
			"email": Email,
			"name":  "Test User",
		},
		introspection: map[string]any{
			"active":    true,
			"client_id": ClientID,
			"sub":       Subject,
		},
	}

	p.server = httptest.NewServer(p)
	t.Cleanup(p.server.Close)

	return p
}

// URL is the issuer and audience of the provider.
func (p *Provider) URL() string { return p.server.URL }

// Client returns an http client talking to the provider.
func (p *Provider) Client() *http.Client { return p.server.Client() }

// Close stops the server, subsequent calls fail on network level.
func (p *Provider) Close() { p.server.Close() }

// SetNonce sets the nonce embedded into issued ID tokens. The authorize
// endpoint sets it from the request as well.
func (p *Provider) SetNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

// SetClaims overrides claims of issued ID tokens. A nil value removes the claim.
func (p *Provider) SetClaims(claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimOverrides = maps.Clone(claims)
}

// OmitIDToken makes the token endpoint answer without id_token.
func (p *Provider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitOptionalEndpoints drops introspection, revocation and end session
// endpoints from discovery.
func (p *Provider) OmitOptionalEndpoints() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitOptional = true
}

// SetTokenStatus forces an error status on the token endpoint.
func (p *Provider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetDiscoveryStatus forces an error status on the discovery endpoint.
func (p *Provider) SetDiscoveryStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discoveryStatus = status
}

// SetUserinfo sets the userinfo response and status.
func (p *Provider) SetUserinfo(status int, body map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userinfoStatus = status
	p.userinfo = body
}

// SetIntrospection sets the introspection response.
func (p *Provider) SetIntrospection(body map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.introspection = body
}

// SetRevocation sets status and raw body of the revocation response.
func (p *Provider) SetRevocation(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokeStatus = status
	p.revokeBody = body
}

// TokenRequests returns how often the token endpoint was called.
func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tokenRequests
}

// DiscoveryRequests returns how often the discovery document was fetched.
func (p *Provider) DiscoveryRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.discoveryRequests
}

// LastAuthQuery returns the query of the last authorize request.
func (p *Provider) LastAuthQuery() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastAuthQuery
}

// LastTokenForm returns the form of the last token request.
func (p *Provider) LastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastTokenForm
}

// Revoked returns the tokens revoked so far.
func (p *Provider) Revoked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.revoked...)
}

// Claims returns the claims an ID token issued now would carry.
func (p *Provider) Claims() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.claimsLocked()
}

func (p *Provider) claimsLocked() map[string]any {
	now := time.Now()

	claims := map[string]any{
		"iss":            p.server.URL,
		"aud":            p.clientID,
		"sub":            Subject,
		"email":          Email,
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}

	if p.nonce != "" {
		claims["nonce"] = p.nonce
	}

	for k, v := range p.claimOverrides {
		if v == nil {
			delete(claims, k)

			continue
		}

		claims[k] = v
	}

	return claims
}

// SignIDToken signs claims with the published key.
func (p *Provider) SignIDToken(claims map[string]any) string {
	p.t.Helper()

	raw, err := p.sign(p.key, claims)
	require.NoError(p.t, err)

	return raw
}

// SignWithForeignKey signs claims with a key that is not published but
// carries the same key id.
func (p *Provider) SignWithForeignKey(claims map[string]any) string {
	p.t.Helper()

	raw, err := p.sign(p.foreign, claims)
	require.NoError(p.t, err)

	return raw
}

func (p *Provider) sign(key *rsa.PrivateKey, claims map[string]any) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: keyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}

	return jws.CompactSerialize()
}

// ServeHTTP implements the provider endpoints.
func (p *Provider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.discovery(w)
	case "/v1/authorize":
		p.authorize(w, req)
	case "/v1/token":
		p.token(w, req)
	case "/v1/keys":
		writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &p.key.PublicKey,
			KeyID:     keyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	case "/v1/userinfo":
		p.userinfoEndpoint(w, req)
	case "/v1/introspect":
		p.introspect(w, req)
	case "/v1/revoke":
		p.revoke(w, req)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *Provider) discovery(w http.ResponseWriter) {
	p.discoveryRequests++

	if p.discoveryStatus != 0 {
		w.WriteHeader(p.discoveryStatus)

		return
	}

	base := p.server.URL
	doc := map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/v1/authorize",
		"token_endpoint":                        base + "/v1/token",
		"jwks_uri":                              base + "/v1/keys",
		"userinfo_endpoint":                     base + "/v1/userinfo",
		"response_types_supported":              []string{"code"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
	}

	if !p.omitOptional {
		doc["introspection_endpoint"] = base + "/v1/introspect"
		doc["revocation_endpoint"] = base + "/v1/revoke"
		doc["end_session_endpoint"] = base + "/v1/logout"
	}

	writeJSON(w, http.StatusOK, doc)
}

func (p *Provider) authorize(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	p.lastAuthQuery = q

	if q.Get("response_type") != "code" || q.Get("client_id") != p.clientID {
		http.Error(w, "invalid_request", http.StatusBadRequest)

		return
	}

	p.nonce = q.Get("nonce")

	target := q.Get("redirect_uri") + "?code=" + url.QueryEscape(p.code) + "&state=" + url.QueryEscape(q.Get("state"))
	http.Redirect(w, req, target, http.StatusFound)
}

// clientAuth accepts client_secret_basic and client_secret_post.
func (p *Provider) clientAuth(req *http.Request) bool {
	id, secret, ok := req.BasicAuth()
	if ok {
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	} else {
		id, secret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
	}

	return id == p.clientID && secret == p.clientSecret
}

func (p *Provider) token(w http.ResponseWriter, req *http.Request) {
	p.tokenRequests++

	if req.Method != http.MethodPost || req.ParseForm() != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	p.lastTokenForm = req.PostForm

	switch {
	case p.tokenStatus != 0:
		writeJSON(w, p.tokenStatus, map[string]string{"error": "server_error"})

		return
	case !p.clientAuth(req):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

		return
	case req.PostForm.Get("grant_type") != "authorization_code" || req.PostForm.Get("code") != p.code:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})

		return
	}

	reply := map[string]any{
		"access_token":  AccessToken,
		"refresh_token": RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"scope":         "openid email profile",
	}

	if !p.omitIDToken {
		raw, err := p.sign(p.key, p.claimsLocked())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		reply["id_token"] = raw
	}

	writeJSON(w, http.StatusOK, reply)
}

func (p *Provider) userinfoEndpoint(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get("Authorization") != "Bearer "+AccessToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})

		return
	}

	status := p.userinfoStatus
	if status == 0 {
		status = http.StatusOK
	}

	writeJSON(w, status, p.userinfo)
}

func (p *Provider) introspect(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost || req.ParseForm() != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if !p.clientAuth(req) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

		return
	}

	if req.PostForm.Get("token") != AccessToken {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})

		return
	}

	writeJSON(w, http.StatusOK, p.introspection)
}

func (p *Provider) revoke(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost || req.ParseForm() != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if !p.clientAuth(req) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

		return
	}

	p.revoked = append(p.revoked, req.PostForm.Get("token"))

	status := p.revokeStatus
	if status == 0 {
		status = http.StatusOK
	}

	if p.revokeBody != "" {
		w.Header().Set("Content-Type", "application/json")
	}

	w.WriteHeader(status)
	_, _ = w.Write([]byte(p.revokeBody))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Audience returns the provider URL with a trailing slash, the way it is
// usually configured.
func (p *Provider) Audience() string {
	return strings.TrimRight(p.server.URL, "/") + "/"
}
