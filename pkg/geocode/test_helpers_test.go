package geocode

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sells-group/childcare-etl/internal/resilience"
)

// newTestClient creates a client aimed at a test server with no rate limit
// and millisecond retry backoff.
func newTestClient(serverURL string, attempts int) *Client {
	return NewClient("test-key",
		WithBaseURL(serverURL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithRateLimit(0),
		WithRetry(resilience.RetryConfig{
			MaxAttempts:    attempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		}),
	)
}

// memCache is an in-memory Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]Location
	getErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]Location{}}
}

func (m *memCache) GetLocation(_ context.Context, key string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	loc, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (m *memCache) PutLocation(_ context.Context, key string, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[key] = loc
	return nil
}

// stubResolver counts calls and returns a fixed answer.
type stubResolver struct {
	loc   Location
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (Location, error) {
	s.calls++
	return s.loc, s.err
}
