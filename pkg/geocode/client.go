// Package geocode resolves free-form addresses into region, locality and
// postal code through the TomTom Search geocoding API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/childcare-etl/internal/resilience"
)

// DefaultBaseURL is the TomTom API host.
const DefaultBaseURL = "https://api.tomtom.com"

// Location is the resolved (region, locality, postal code) triple. Empty
// fields mean the lookup did not supply them.
type Location struct {
	Region     string `json:"region,omitempty"`     // countrySubdivision, e.g. "TX"
	Locality   string `json:"locality,omitempty"`   // municipality
	PostalCode string `json:"postal_code,omitempty"`
}

// Empty reports whether no field was resolved.
func (l Location) Empty() bool {
	return l.Region == "" && l.Locality == "" && l.PostalCode == ""
}

// Resolver looks up one address. Unmatched addresses and non-success
// responses yield an empty Location and no error; only transport failures
// are returned as errors.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Location, error)
}

// Option configures the TomTom client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a different host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRateLimit caps lookups per second. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient transport failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// Client is the TomTom geocoding Resolver.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a TomTom client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(5, 5), // TomTom free tier: 5 req/s
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("tomtom", "geocode")
	}
	return c
}

var _ Resolver = (*Client)(nil)
