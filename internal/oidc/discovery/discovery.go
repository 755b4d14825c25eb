// Package discovery fetches and caches OpenID Connect provider metadata.
//
// Documents are cached per audience for Config.TTL. Concurrent misses for the
// same audience share a single fetch that runs detached from the callers, so
// one cancelled caller does not fail the others. When a refresh fails, an
// entry younger than Config.MaxStale is served instead and a warning is logged.
//
// The well-known path is fetched through go-oidc. A custom Config.Path is
// fetched directly since go-oidc only knows the well-known location.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/metrics"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
)

const (
	// DefaultPath is appended to the audience to locate the document.
	DefaultPath = "/.well-known/openid-configuration"
	// DefaultTTL is the time a document is served without refresh.
	DefaultTTL = time.Hour
	// DefaultMaxStale is the maximum age of a document served after a failed refresh.
	DefaultMaxStale = 24 * time.Hour

	maxDocumentSize = 1 << 20
)

// Config configures the discovery Client.
type Config struct {
	Path     string
	TTL      time.Duration
	MaxStale time.Duration
	// Timeout bounds a shared fetch, independent of the waiting callers.
	Timeout time.Duration
}

type entry struct {
	doc       *Document
	fetchedAt time.Time
}

// Client is a read-through cache of discovery documents keyed by audience.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        Config
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]entry
	group singleflight.Group
}

// New creates a discovery client. A nil httpClient uses http.DefaultClient.
func New(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	if cfg.MaxStale <= 0 {
		cfg.MaxStale = DefaultMaxStale
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		now:        time.Now,
		cache:      make(map[string]entry),
	}
}

// URL returns the discovery document URL for audience.
func (c *Client) URL(audience string) string {
	return strings.TrimRight(audience, "/") + c.cfg.Path
}

// Get returns the discovery document of audience. The returned document is a
// copy and may be modified by the caller.
func (c *Client) Get(ctx context.Context, audience string) (*Document, error) {
	key := strings.TrimRight(audience, "/")

	if e, ok := c.lookup(key); ok && c.fresh(e) {
		metrics.DiscoveryRequests.WithLabelValues(metrics.ResultCache).Inc()

		return e.doc.clone(), nil
	}

	flight := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()

		return c.refresh(fetchCtx, key)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}

		doc, _ := res.Val.(*Document)

		return doc.clone(), nil
	}
}

func (c *Client) refresh(ctx context.Context, key string) (*Document, error) {
	// another flight may have refreshed the entry meanwhile
	if e, ok := c.lookup(key); ok && c.fresh(e) {
		return e.doc, nil
	}

	doc, err := c.fetch(ctx, key)
	if err != nil {
		if e, ok := c.lookup(key); ok && c.now().Sub(e.fetchedAt) < c.cfg.MaxStale {
			log.Warn().Err(err).Str("audience", key).Time("fetched_at", e.fetchedAt).
				Msg("discovery refresh failed, serving stale document")
			metrics.DiscoveryRequests.WithLabelValues(metrics.ResultStale).Inc()

			return e.doc, nil
		}

		metrics.DiscoveryRequests.WithLabelValues(metrics.ResultError).Inc()

		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = entry{doc: doc, fetchedAt: c.now()}
	c.mu.Unlock()

	metrics.DiscoveryRequests.WithLabelValues(metrics.ResultOK).Inc()
	log.Debug().Str("audience", key).Str("issuer", doc.Issuer).Msg("discovery document fetched")

	return doc, nil
}

// Invalidate drops the cached document of audience.
func (c *Client) Invalidate(audience string) {
	c.mu.Lock()
	delete(c.cache, strings.TrimRight(audience, "/"))
	c.mu.Unlock()
}

func (c *Client) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.cache[key]

	return e, ok
}

func (c *Client) fresh(e entry) bool {
	return c.now().Sub(e.fetchedAt) < c.cfg.TTL
}

func (c *Client) fetch(ctx context.Context, key string) (*Document, error) {
	if c.cfg.Path != DefaultPath {
		return c.fetchPath(ctx, key+c.cfg.Path)
	}

	// the document issuer is not required to equal the audience, the
	// validator checks iss against the configured issuer
	ctx = oidc.InsecureIssuerURLContext(httpclient.ClientContext(ctx, c.httpClient), key)

	provider, err := oidc.NewProvider(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	doc := new(Document)
	if err = provider.Claims(doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrDiscovery, c.URL(key), err)
	}

	return checked(doc, c.URL(key))
}

// fetchPath loads the document from a non standard location.
func (c *Client) fetchPath(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrDiscovery, url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrDiscovery, url, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: unexpected status %s", ErrDiscovery, url, resp.Status)
	}

	doc := new(Document)
	if err = json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrDiscovery, url, err)
	}

	return checked(doc, url)
}

func checked(doc *Document, url string) (*Document, error) {
	if missing := doc.missingField(); missing != "" {
		return nil, fmt.Errorf("%w: %s: missing %q", ErrDiscovery, url, missing)
	}

	return doc, nil
}
