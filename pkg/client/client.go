package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
	"github.com/skyhookdb/skyhook-go/pkg/cache"
	"github.com/skyhookdb/skyhook-go/pkg/logger"
	"github.com/skyhookdb/skyhook-go/pkg/object"
	"github.com/skyhookdb/skyhook-go/pkg/query"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request headers the server authenticates with.
const (
	HeaderAppID        = "X-Skyhook-Application-Id"
	HeaderAPIKey       = "X-Skyhook-REST-API-Key"
	HeaderMasterKey    = "X-Skyhook-Master-Key"
	HeaderSessionToken = "X-Skyhook-Session-Token"
	HeaderRequestID    = "X-Request-Id"
)

const (
	defaultMountPath   = "/1"
	defaultBatchSize   = 50
	defaultConcurrency = 4

	// defaultLimitCap resolves the query.MaxLimit sentinel. Historical server
	// builds capped limit at 1000 and skip at 10000; current ones do not, so
	// the cap is configuration, not a protocol constant.
	defaultLimitCap = 10000
)

// Client talks to one Skyhook server. Construct with New and functional
// options; the zero value is not usable.
type Client struct {
	serverURL *url.URL
	mountPath string

	appID     string
	apiKey    string
	masterKey string

	httpClient *http.Client
	retry      retryPolicy
	cacheStore cache.Store
	cacheTTL   time.Duration
	cacheMW    *cache.Middleware

	batchSize   int
	concurrency int
	limitCap    int

	formatter query.FieldFormatter
	registry  *object.Registry
	defaults  *acl.Defaults

	logger logger.Logger
}

type Option func(*Client)

// WithServerURL points the client at a server base URL, e.g.
// "https://api.example.com". The API mount path defaults to "/1".
func WithServerURL(raw string) Option {
	return func(c *Client) {
		u, err := url.Parse(raw)
		if err == nil {
			c.serverURL = u
		}
	}
}

// WithMountPath overrides the server's API mount point.
func WithMountPath(p string) Option {
	return func(c *Client) {
		c.mountPath = "/" + strings.Trim(p, "/")
	}
}

// WithCredentials sets the application ID and REST API key.
func WithCredentials(appID, apiKey string) Option {
	return func(c *Client) {
		c.appID = appID
		c.apiKey = apiKey
	}
}

// WithMasterKey sets the master credential.
func WithMasterKey(key string) Option {
	return func(c *Client) {
		c.masterKey = key
	}
}

// WithCache installs a cache store with a default TTL. Per-query TTLs
// override it; a zero TTL disables caching.
func WithCache(store cache.Store, defaultTTL time.Duration) Option {
	return func(c *Client) {
		c.cacheStore = store
		c.cacheTTL = defaultTTL
	}
}

// WithRetryLimit bounds retry attempts per logical request.
func WithRetryLimit(limit int) Option {
	return func(c *Client) {
		c.retry = newRetryPolicy(limit)
	}
}

// WithBatchSize overrides the server's per-request batch operation cap.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithConcurrency bounds the batch executor's worker pool.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLimitCap sets the numeric value the query.MaxLimit sentinel resolves to.
func WithLimitCap(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limitCap = n
		}
	}
}

// WithFieldFormatter sets the compile-time field-name formatter for every
// query issued through this client.
func WithFieldFormatter(f query.FieldFormatter) Option {
	return func(c *Client) {
		c.formatter = f
	}
}

// WithRegistry supplies the class registry.
func WithRegistry(r *object.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// WithDefaultACLs supplies the per-class default ACL rules applied to records
// decoded without an explicit ACL.
func WithDefaultACLs(d *acl.Defaults) Option {
	return func(c *Client) {
		c.defaults = d
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger installs a structured logger; the default is a noop.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		mountPath:   defaultMountPath,
		httpClient:  &http.Client{},
		retry:       newRetryPolicy(defaultRetryLimit),
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
		limitCap:    defaultLimitCap,
		formatter:   query.FormatIdentity,
		registry:    object.NewRegistry(),
		defaults:    acl.NewDefaults(),
		logger:      logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cacheMW = cache.NewMiddleware(c.cacheStore, c.cacheTTL, c.logger)
	return c
}

// Registry returns the client's class registry.
func (c *Client) Registry() *object.Registry { return c.registry }

// Defaults returns the client's default ACL rules.
func (c *Client) Defaults() *acl.Defaults { return c.defaults }

// NewRecord starts a fresh record carrying this client's default ACL rules.
func (c *Client) NewRecord(className string) *object.Record {
	return object.NewRecord(className, c.defaults)
}

// Query starts a query bound to this client's formatter and registry.
func (c *Client) Query(collection string) *query.Query {
	return query.New(collection).WithFormatter(c.formatter).WithRegistry(c.registry)
}
