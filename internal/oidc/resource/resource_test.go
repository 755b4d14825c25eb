package resource_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/discovery"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/oidctest"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/resource"
)

func newTestClient(t *testing.T) (*oidctest.Provider, *resource.Client) {
	t.Helper()

	idp := oidctest.New(t)
	c := resource.New(resource.Credentials{
		ClientID:     oidctest.ClientID,
		ClientSecret: oidctest.ClientSecret,
	}, idp.Client())

	return idp, c
}

func TestUserinfo(t *testing.T) {
	idp, c := newTestClient(t)
	doc := &discovery.Document{
		Issuer:           idp.URL(),
		JWKSURI:          idp.URL() + "/v1/keys",
		UserinfoEndpoint: idp.URL() + "/v1/userinfo",
	}

	info, err := c.Userinfo(context.Background(), doc, oidctest.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, oidctest.Email, info["email"])

	_, err = c.Userinfo(context.Background(), doc, "expired-token")
	require.ErrorIs(t, err, resource.ErrResourceCall)

	idp.SetUserinfo(http.StatusInternalServerError, map[string]any{"error": "server_error"})

	_, err = c.Userinfo(context.Background(), doc, oidctest.AccessToken)
	require.ErrorIs(t, err, resource.ErrResourceCall)

	_, err = c.Userinfo(context.Background(), &discovery.Document{Issuer: idp.URL()}, oidctest.AccessToken)
	require.ErrorIs(t, err, resource.ErrResourceCall)

	_, err = c.Userinfo(context.Background(), nil, oidctest.AccessToken)
	require.ErrorIs(t, err, resource.ErrResourceCall)

	_, err = c.Userinfo(context.Background(), doc, "")
	require.ErrorIs(t, err, resource.ErrResourceCall)
}

func TestIntrospect(t *testing.T) {
	idp, c := newTestClient(t)
	endpoint := idp.URL() + "/v1/introspect"

	idp.SetIntrospection(map[string]any{
		"active":    true,
		"client_id": oidctest.ClientID,
		"sub":       oidctest.Subject,
		"exp":       1900000000,
		"uid":       "00u1",
	})

	in, err := c.Introspect(context.Background(), endpoint, oidctest.AccessToken)
	require.NoError(t, err)
	assert.True(t, in.Active)
	assert.Equal(t, oidctest.ClientID, in.ClientID)
	assert.Equal(t, int64(1900000000), in.Exp)
	assert.Equal(t, "00u1", in.Raw["uid"])

	in, err = c.Introspect(context.Background(), endpoint, "unknown")
	require.NoError(t, err)
	assert.False(t, in.Active)

	bad := resource.New(resource.Credentials{ClientID: oidctest.ClientID, ClientSecret: "wrong"}, idp.Client())

	_, err = bad.Introspect(context.Background(), endpoint, oidctest.AccessToken)
	require.ErrorIs(t, err, resource.ErrResourceCall)
}

func TestRevoke(t *testing.T) {
	idp, c := newTestClient(t)
	endpoint := idp.URL() + "/v1/revoke"

	rev, err := c.Revoke(context.Background(), endpoint, oidctest.AccessToken)
	require.NoError(t, err)
	assert.True(t, rev.Revoked)
	assert.Empty(t, rev.Raw)
	assert.Equal(t, []string{oidctest.AccessToken}, idp.Revoked())

	idp.SetRevocation(http.StatusBadRequest, `{"error":"invalid_request","error_description":"token missing"}`)

	rev, err = c.Revoke(context.Background(), endpoint, oidctest.AccessToken)
	require.NoError(t, err)
	assert.False(t, rev.Revoked)
	assert.Equal(t, http.StatusBadRequest, rev.Status)
	assert.Contains(t, rev.Raw, "\n    \"error\": \"invalid_request\"")

	idp.SetRevocation(http.StatusOK, "not json")

	rev, err = c.Revoke(context.Background(), endpoint, oidctest.AccessToken)
	require.NoError(t, err)
	assert.False(t, rev.Revoked)
	assert.Equal(t, "not json", rev.Raw)

	idp.Close()

	_, err = c.Revoke(context.Background(), endpoint, oidctest.AccessToken)
	require.ErrorIs(t, err, resource.ErrResourceCall)
}

func TestPublicClientSendsClientID(t *testing.T) {
	idp := oidctest.New(t)
	c := resource.New(resource.Credentials{ClientID: oidctest.ClientID}, idp.Client())

	// the fake provider requires the secret, so a public client is rejected
	rev, err := c.Revoke(context.Background(), idp.URL()+"/v1/revoke", oidctest.AccessToken)
	require.NoError(t, err)
	assert.False(t, rev.Revoked)
	assert.Equal(t, http.StatusUnauthorized, rev.Status)
	assert.Contains(t, rev.Raw, "invalid_client")
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n    \"a\": 1,\n    \"b\": 2\n}", resource.PrettyJSON(map[string]int{"b": 2, "a": 1}))
	assert.Empty(t, resource.PrettyJSON(func() {}))
}
