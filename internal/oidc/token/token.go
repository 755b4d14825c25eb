// Package token exchanges authorization codes for tokens and models the
// resulting token set and ID token claims.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/discovery"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
)

// Set is the token set of one authenticated session.
type Set struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Claims       *Claims   `json:"claims,omitempty"`
}

// ClientConfig is the client registration used for the code exchange.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Exchanger performs the authorization code grant against the token endpoint.
type Exchanger struct {
	client     ClientConfig
	httpClient *http.Client
}

// NewExchanger creates an Exchanger. A nil httpClient uses http.DefaultClient.
func NewExchanger(client ClientConfig, httpClient *http.Client) *Exchanger {
	return &Exchanger{client: client, httpClient: httpClient}
}

// OAuth2Config returns the oauth2 client configuration for the provider described by doc.
func (e *Exchanger) OAuth2Config(doc *discovery.Document) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.client.ClientID,
		ClientSecret: e.client.ClientSecret,
		RedirectURL:  e.client.RedirectURI,
		Scopes:       e.client.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   doc.AuthorizationEndpoint,
			TokenURL:  doc.TokenEndpoint,
			AuthStyle: e.authStyle(doc),
		},
	}
}

// authStyle prefers HTTP basic auth, falls back to form parameters for
// public clients or providers that only accept client_secret_post.
func (e *Exchanger) authStyle(doc *discovery.Document) oauth2.AuthStyle {
	switch {
	case e.client.ClientSecret == "":
		return oauth2.AuthStyleInParams
	case doc.SupportsAuthMethod("client_secret_basic"):
		return oauth2.AuthStyleInHeader
	case doc.SupportsAuthMethod("client_secret_post"):
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

// Exchange trades code for a token set. The returned set carries no claims;
// those are attached after the ID token was validated. A response without
// id_token is not an error here, the caller decides.
func (e *Exchanger) Exchange(ctx context.Context, doc *discovery.Document, code string) (*Set, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrExchange)
	}

	ctx = httpclient.ClientContext(ctx, e.httpClient)

	tok, err := e.OAuth2Config(doc).Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			log.Warn().Str("error_code", re.ErrorCode).Int("status", re.Response.StatusCode).
				Str("token_endpoint", doc.TokenEndpoint).Msg("token endpoint rejected the code")
		}

		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	set := &Set{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}

	if !tok.Expiry.IsZero() {
		set.Expiry = tok.Expiry.UTC().Round(0)
	}

	if idToken, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}

	return set, nil
}
