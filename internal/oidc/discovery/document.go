package discovery

import (
	"slices"
	"strings"
)

// Fallback paths for providers that omit the endpoints from discovery.
const (
	FallbackIntrospectPath = "/v1/introspect"
	FallbackRevokePath     = "/v1/revoke"
)

// Document is the provider metadata published under the discovery path.
type Document struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`

	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// missingField returns the first required key the document lacks.
func (d *Document) missingField() string {
	switch {
	case d.Issuer == "":
		return "issuer"
	case d.AuthorizationEndpoint == "":
		return "authorization_endpoint"
	case d.TokenEndpoint == "":
		return "token_endpoint"
	case d.JWKSURI == "":
		return "jwks_uri"
	}

	return ""
}

// IntrospectionURL returns the introspection endpoint or {issuer}/v1/introspect.
func (d *Document) IntrospectionURL() string {
	if d.IntrospectionEndpoint != "" {
		return d.IntrospectionEndpoint
	}

	return strings.TrimRight(d.Issuer, "/") + FallbackIntrospectPath
}

// RevocationURL returns the revocation endpoint or {issuer}/v1/revoke.
func (d *Document) RevocationURL() string {
	if d.RevocationEndpoint != "" {
		return d.RevocationEndpoint
	}

	return strings.TrimRight(d.Issuer, "/") + FallbackRevokePath
}

// SupportsAuthMethod reports whether the token endpoint accepts method.
// An empty list means client_secret_basic per OpenID Connect Discovery.
func (d *Document) SupportsAuthMethod(method string) bool {
	if len(d.TokenEndpointAuthMethodsSupported) == 0 {
		return method == "client_secret_basic"
	}

	return slices.Contains(d.TokenEndpointAuthMethodsSupported, method)
}

func (d *Document) clone() *Document {
	c := *d
	c.ScopesSupported = slices.Clone(d.ScopesSupported)
	c.ResponseTypesSupported = slices.Clone(d.ResponseTypesSupported)
	c.IDTokenSigningAlgValuesSupported = slices.Clone(d.IDTokenSigningAlgValuesSupported)
	c.TokenEndpointAuthMethodsSupported = slices.Clone(d.TokenEndpointAuthMethodsSupported)

	return &c
}
