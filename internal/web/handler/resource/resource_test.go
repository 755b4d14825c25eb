package resource

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/oidctest"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/handlertest"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

func setup(t *testing.T) (*handlertest.Env, string) {
	t.Helper()

	env := handlertest.New(t)

	var s Service
	require.NoError(t, s.Init(env.App, env.Deps))

	return env, env.Login(t)
}

func post(t *testing.T, env *handlertest.Env, path, sessionID string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cookies := map[string]string{}
	if sessionID != "" {
		cookies[cookie.Session] = sessionID
	}

	return env.Do(t, req, cookies)
}

func load(t *testing.T, env *handlertest.Env, id string) *session.Data {
	t.Helper()

	data, err := env.Sessions.Get(id)
	require.NoError(t, err)

	return data
}

func TestUnauthenticated(t *testing.T) {
	env, _ := setup(t)

	for _, path := range []string{UserinfoPath, IntrospectPath, RevokePath} {
		resp := post(t, env, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	assert.Empty(t, env.Provider.Revoked())
}

func TestUserinfo(t *testing.T) {
	env, id := setup(t)
	before := load(t, env, id).Tokens

	resp := post(t, env, UserinfoPath, id, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	data := load(t, env, id)
	assert.Contains(t, data.UserInfo, `"email": "`+oidctest.Email+`"`)
	assert.Equal(t, before, data.Tokens, "token set is not changed by resource calls")
}

func TestUserinfoErrorKeepsPreviousValue(t *testing.T) {
	env, id := setup(t)

	data := load(t, env, id)
	data.UserInfo = "previous"
	require.NoError(t, env.Sessions.Set(id, data))

	env.Provider.SetUserinfo(http.StatusInternalServerError, map[string]any{"error": "server_error"})

	resp := post(t, env, UserinfoPath, id, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "previous", load(t, env, id).UserInfo)
}

func TestIntrospect(t *testing.T) {
	env, id := setup(t)

	resp := post(t, env, IntrospectPath, id, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, load(t, env, id).Introspect, `"active": true`)

	resp = post(t, env, IntrospectPath, id, url.Values{FormAccessToken: {"unknown"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, load(t, env, id).Introspect, `"active": false`)
}

func TestRevoke(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		form    url.Values
		want    string
		revoked string
	}{
		{
			name:    "empty body",
			want:    MsgRevoked,
			revoked: oidctest.AccessToken,
		},
		{
			name:    "provider rejects",
			status:  http.StatusBadRequest,
			body:    `{"error":"invalid_token"}`,
			want:    "\"error\": \"invalid_token\"",
			revoked: oidctest.AccessToken,
		},
		{
			name:    "form token",
			form:    url.Values{FormAccessToken: {"other-token"}},
			want:    MsgRevoked,
			revoked: "other-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, id := setup(t)
			if tt.status != 0 {
				env.Provider.SetRevocation(tt.status, tt.body)
			}

			resp := post(t, env, RevokePath, id, tt.form)
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

			data := load(t, env, id)
			assert.Contains(t, data.Revocation, tt.want)
			assert.Equal(t, []string{tt.revoked}, env.Provider.Revoked())
			assert.Equal(t, oidctest.AccessToken, data.Tokens.AccessToken)
		})
	}
}
