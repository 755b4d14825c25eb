package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/metrics"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/discovery"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/resource"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/validator"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/uniuri"
)

// Outcome tags the result of a callback.
type Outcome string

// Callback outcomes. Only OutcomeAuthenticated establishes a session.
const (
	OutcomeAuthenticated      Outcome = "authenticated"
	OutcomeStateMismatch      Outcome = "state_mismatch"
	OutcomeDiscoveryFailed    Outcome = "discovery_failed"
	OutcomeExchangeFailed     Outcome = "exchange_failed"
	OutcomeNoIDToken          Outcome = "no_id_token"
	OutcomeValidationFailed   Outcome = "validation_failed"
	OutcomeIdentityUnresolved Outcome = "identity_unresolved"
)

// AuthRequest is one authorization attempt. State and Nonce travel in
// short lived cookies and are consumed by the callback.
type AuthRequest struct {
	State string
	Nonce string
	URL   string
	// RedirectParams is the base64url encoded JSON of the request parameters.
	RedirectParams string
}

// redirectParams are the parameters recorded in the oauth-redirect-params cookie.
type redirectParams struct {
	ResponseType string   `json:"responseType"`
	Scopes       []string `json:"scopes"`
	RedirectURI  string   `json:"redirectUri"`
	IDP          string   `json:"idp,omitempty"`
	Issuer       string   `json:"issuer"`
}

// CallbackInput carries the callback query and the auth cookies.
type CallbackInput struct {
	Code        string
	State       string
	Error       string // error parameter of the provider redirect
	CookieState string
	CookieNonce string
}

// CallbackResult is the tagged result of HandleCallback.
type CallbackResult struct {
	Outcome Outcome
	Err     error
	Tokens  *token.Set
	User    *models.User
}

// Authenticated reports whether the callback succeeded.
func (r CallbackResult) Authenticated() bool {
	return r.Outcome == OutcomeAuthenticated
}

// RelyingParty runs the authorization code flow against the configured provider.
// It holds no per request state and is safe for concurrent use.
type RelyingParty struct {
	cfg        *config.OIDC
	discovery  *discovery.Client
	exchanger  *token.Exchanger
	validator  *validator.Validator
	resources  *resource.Client
	identities IdentityResolver
}

// NewRelyingParty wires the protocol clients for cfg. A nil httpClient uses a
// pooled client bounded by cfg.HTTPTimeout.
func NewRelyingParty(cfg *config.OIDC, identities IdentityResolver, httpClient *http.Client) *RelyingParty {
	if httpClient == nil {
		httpClient = httpclient.New(cfg.HTTPTimeout)
	}

	disco := discovery.New(httpClient, discovery.Config{
		Path:     cfg.DiscoveryPath,
		TTL:      cfg.DiscoveryTTL,
		MaxStale: cfg.DiscoveryMaxStale,
		Timeout:  cfg.HTTPTimeout,
	})

	return &RelyingParty{
		cfg:       cfg,
		discovery: disco,
		exchanger: token.NewExchanger(token.ClientConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
		}, httpClient),
		validator: validator.New(validator.Config{
			Audience:  cfg.Audience,
			Issuer:    cfg.Issuer,
			ClientID:  cfg.ClientID,
			ClockSkew: cfg.ClockSkew,
		}, disco, httpClient),
		resources: resource.New(resource.Credentials{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		}, httpClient),
		identities: identities,
	}
}

// Config returns the provider configuration.
func (rp *RelyingParty) Config() *config.OIDC {
	return rp.cfg
}

// Discovery returns the discovery document of the configured audience.
func (rp *RelyingParty) Discovery(ctx context.Context) (*discovery.Document, error) {
	ctx, cancel := rp.callContext(ctx)
	defer cancel()

	return rp.discovery.Get(ctx, rp.cfg.Audience)
}

// NewAuthRequest creates fresh state and nonce values and the authorization URL.
func (rp *RelyingParty) NewAuthRequest(ctx context.Context) (*AuthRequest, error) {
	doc, err := rp.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	state, err := uniuri.NewToken()
	if err != nil {
		return nil, err
	}

	nonce, err := uniuri.NewToken()
	if err != nil {
		return nil, err
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	if rp.cfg.IDP != "" {
		opts = append(opts, oauth2.SetAuthURLParam("idp", rp.cfg.IDP))
	}

	params, err := json.Marshal(redirectParams{
		ResponseType: "code",
		Scopes:       rp.cfg.Scopes,
		RedirectURI:  rp.cfg.RedirectURI,
		IDP:          rp.cfg.IDP,
		Issuer:       doc.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return &AuthRequest{
		State:          state,
		Nonce:          nonce,
		URL:            rp.exchanger.OAuth2Config(doc).AuthCodeURL(state, opts...),
		RedirectParams: base64.RawURLEncoding.EncodeToString(params),
	}, nil
}

// HandleCallback runs the callback steps in order and stops at the first
// failure. The state is checked before any network call.
func (rp *RelyingParty) HandleCallback(ctx context.Context, in CallbackInput) CallbackResult {
	res := rp.handleCallback(ctx, in)

	metrics.CallbackOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	if res.Authenticated() {
		log.Info().Str("username", res.User.Username).Uint64("user_id", res.User.ID).Msg("user logged in")
	} else {
		log.Warn().Err(res.Err).Str("outcome", string(res.Outcome)).Msg("callback rejected")
	}

	return res
}

func (rp *RelyingParty) handleCallback(ctx context.Context, in CallbackInput) CallbackResult {
	if !StateEqual(in.State, in.CookieState) {
		return CallbackResult{Outcome: OutcomeStateMismatch, Err: ErrStateMismatch}
	}

	if in.Error != "" {
		return CallbackResult{Outcome: OutcomeExchangeFailed, Err: fmt.Errorf("%w: %s", ErrProviderError, in.Error)}
	}

	doc, err := rp.Discovery(ctx)
	if err != nil {
		return CallbackResult{Outcome: OutcomeDiscoveryFailed, Err: err}
	}

	exCtx, cancel := rp.callContext(ctx)
	set, err := rp.exchanger.Exchange(exCtx, doc, in.Code)

	cancel()

	if err != nil {
		return CallbackResult{Outcome: OutcomeExchangeFailed, Err: err}
	}

	if set.IDToken == "" {
		return CallbackResult{Outcome: OutcomeNoIDToken, Err: ErrNoIDToken}
	}

	valCtx, cancel := rp.callContext(ctx)
	claims, err := rp.validator.Validate(valCtx, set.IDToken, in.CookieNonce)

	cancel()

	if err != nil {
		return CallbackResult{Outcome: OutcomeValidationFailed, Err: err}
	}

	u, err := rp.identities.Resolve(ctx, claims)
	if err != nil {
		return CallbackResult{Outcome: OutcomeIdentityUnresolved, Err: err}
	}

	set.Claims = claims

	return CallbackResult{Outcome: OutcomeAuthenticated, Tokens: set, User: u}
}

// StateEqual compares state values in constant time. Empty values never match.
func StateEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Userinfo calls the userinfo endpoint with accessToken.
func (rp *RelyingParty) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	doc, err := rp.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	if doc.UserinfoEndpoint == "" {
		return nil, fmt.Errorf("%w: userinfo", ErrNoEndpoint)
	}

	ctx, cancel := rp.callContext(ctx)
	defer cancel()

	return rp.resources.Userinfo(ctx, doc, accessToken)
}

// Introspect calls the introspection endpoint, {issuer}/v1/introspect if
// discovery does not publish one.
func (rp *RelyingParty) Introspect(ctx context.Context, accessToken string) (*resource.Introspection, error) {
	doc, err := rp.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := rp.callContext(ctx)
	defer cancel()

	return rp.resources.Introspect(ctx, doc.IntrospectionURL(), accessToken)
}

// Revoke calls the revocation endpoint, {issuer}/v1/revoke if discovery does
// not publish one.
func (rp *RelyingParty) Revoke(ctx context.Context, accessToken string) (*resource.Revocation, error) {
	doc, err := rp.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := rp.callContext(ctx)
	defer cancel()

	return rp.resources.Revoke(ctx, doc.RevocationURL(), accessToken)
}

// LogoutURL returns the provider end session URL when EndSessionLogout is
// enabled and the provider publishes an end_session_endpoint.
func (rp *RelyingParty) LogoutURL(ctx context.Context, idToken, postLogoutRedirectURI string) (string, bool) {
	if !rp.cfg.EndSessionLogout || idToken == "" {
		return "", false
	}

	doc, err := rp.Discovery(ctx)
	if err != nil || doc.EndSessionEndpoint == "" {
		return "", false
	}

	u, err := url.Parse(doc.EndSessionEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", doc.EndSessionEndpoint).Msg("invalid end_session_endpoint")

		return "", false
	}

	q := u.Query()
	q.Set("id_token_hint", idToken)
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	u.RawQuery = q.Encode()

	return u.String(), true
}

func (rp *RelyingParty) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := rp.cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}

	return context.WithTimeout(ctx, timeout)
}

// Warm fetches the discovery document once, so the first login does not pay
// for it. Failures are logged and retried on demand.
func (rp *RelyingParty) Warm(ctx context.Context) {
	start := time.Now()

	if _, err := rp.Discovery(ctx); err != nil {
		log.Warn().Err(err).Str("audience", rp.cfg.Audience).Msg("discovery warm up failed")

		return
	}

	log.Info().Str("audience", rp.cfg.Audience).Dur("took", time.Since(start)).Msg("discovery document loaded")
}
