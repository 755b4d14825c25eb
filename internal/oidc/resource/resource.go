// Package resource calls the provider endpoints authorized by an access token:
// userinfo through go-oidc, token introspection (RFC 7662) and token
// revocation (RFC 7009).
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/metrics"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/discovery"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
)

const (
	callUserinfo   = "userinfo"
	callIntrospect = "introspect"
	callRevoke     = "revoke"

	maxBodySize = 1 << 20
)

// Introspection is the RFC 7662 introspection response.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`

	// Raw is the complete response including provider specific members.
	Raw map[string]any `json:"-"`
}

// Revocation is the outcome of a revocation call.
type Revocation struct {
	// Revoked is set for a 2xx response without body.
	Revoked bool
	// Status is the HTTP status of the provider response.
	Status int
	// Raw is the provider response text, indented if it is JSON.
	Raw string
}

// Credentials authenticate the client at introspection and revocation endpoints.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client performs the resource calls. It is safe for concurrent use.
type Client struct {
	creds      Credentials
	httpClient *http.Client
}

// New creates a resource Client. A nil httpClient uses http.DefaultClient.
func New(creds Credentials, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{creds: creds, httpClient: httpClient}
}

// Userinfo fetches the userinfo claims of the provider described by doc with
// accessToken as bearer credential.
func (c *Client) Userinfo(ctx context.Context, doc *discovery.Document, accessToken string) (map[string]any, error) {
	out, err := c.userinfo(ctx, doc, accessToken)
	count(callUserinfo, err)

	return out, err
}

func (c *Client) userinfo(ctx context.Context, doc *discovery.Document, accessToken string) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: endpoint not available", ErrResourceCall)
	}

	if err := precondition(doc.UserinfoEndpoint, accessToken); err != nil {
		return nil, err
	}

	ctx = httpclient.ClientContext(ctx, c.httpClient)

	provider := (&oidc.ProviderConfig{
		IssuerURL:   doc.Issuer,
		AuthURL:     doc.AuthorizationEndpoint,
		TokenURL:    doc.TokenEndpoint,
		UserInfoURL: doc.UserinfoEndpoint,
		JWKSURL:     doc.JWKSURI,
		Algorithms:  doc.IDTokenSigningAlgValuesSupported,
	}).NewProvider(ctx)

	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %w", ErrResourceCall, err)
	}

	var out map[string]any
	if err = info.Claims(&out); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %w", ErrResourceCall, err)
	}

	return out, nil
}

// Introspect asks the provider about the state of accessToken.
func (c *Client) Introspect(ctx context.Context, endpoint, accessToken string) (*Introspection, error) {
	out, err := c.introspect(ctx, endpoint, accessToken)
	count(callIntrospect, err)

	return out, err
}

func (c *Client) introspect(ctx context.Context, endpoint, accessToken string) (*Introspection, error) {
	if err := precondition(endpoint, accessToken); err != nil {
		return nil, err
	}

	status, body, err := c.postToken(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: introspect status %d: %s", ErrResourceCall, status, snippet(body))
	}

	out := new(Introspection)
	if err = json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: decode introspection: %w", ErrResourceCall, err)
	}

	if err = json.Unmarshal(body, &out.Raw); err != nil {
		return nil, fmt.Errorf("%w: decode introspection: %w", ErrResourceCall, err)
	}

	return out, nil
}

// Revoke revokes accessToken. Provider rejections are no error, they are
// reported through Revocation.Raw.
func (c *Client) Revoke(ctx context.Context, endpoint, accessToken string) (*Revocation, error) {
	out, err := c.revoke(ctx, endpoint, accessToken)
	count(callRevoke, err)

	return out, err
}

func (c *Client) revoke(ctx context.Context, endpoint, accessToken string) (*Revocation, error) {
	if err := precondition(endpoint, accessToken); err != nil {
		return nil, err
	}

	status, body, err := c.postToken(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if status >= 200 && status < 300 && len(trimmed) == 0 {
		return &Revocation{Revoked: true, Status: status}, nil
	}

	return &Revocation{Status: status, Raw: indent(trimmed)}, nil
}

// postToken posts the token with client authentication, basic auth for
// confidential clients, client_id in the form for public ones.
func (c *Client) postToken(ctx context.Context, endpoint, accessToken string) (int, []byte, error) {
	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
	}

	if c.creds.ClientSecret == "" {
		form.Set("client_id", c.creds.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrResourceCall, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if c.creds.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(c.creds.ClientID), url.QueryEscape(c.creds.ClientSecret))
	}

	return do(c.httpClient, req)
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrResourceCall, req.Method, req.URL.Redacted(), err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %w", ErrResourceCall, err)
	}

	return resp.StatusCode, body, nil
}

func precondition(endpoint, accessToken string) error {
	switch {
	case endpoint == "":
		return fmt.Errorf("%w: endpoint not available", ErrResourceCall)
	case accessToken == "":
		return fmt.Errorf("%w: empty access token", ErrResourceCall)
	}

	return nil
}

func count(call string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}

	metrics.ResourceCalls.WithLabelValues(call, result).Inc()
}

// indent pretty prints JSON bodies and returns anything else unchanged.
func indent(body []byte) string {
	var buf bytes.Buffer
	if json.Valid(body) && json.Indent(&buf, body, "", "    ") == nil {
		return buf.String()
	}

	return string(body)
}

func snippet(body []byte) string {
	const limit = 256

	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}

	return s
}

// PrettyJSON returns v as indented JSON with sorted map keys.
func PrettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return ""
	}

	return string(b)
}
