// Package httpclient builds the outbound HTTP client used for all provider calls.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds every provider call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// New returns a pooled client with the given overall request timeout.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   timeout,
	}
}

// ClientContext returns a context carrying client. go-oidc and x/oauth2 both
// pick the client up from this context key.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}

	return oidc.ClientContext(ctx, client)
}
