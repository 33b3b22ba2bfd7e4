package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// Compile-time interface check.
var _ Client = (*CachedClient)(nil)

// CachedClient memoizes responses from an inner Client for the duration of a
// run. It is constructed at run start and torn down with Close at run end;
// it is never shared across runs, so identical prompts within one audit
// (judge retries replaying an unchanged catalog, for example) hit the cache
// while separate audits always see fresh model output.
type CachedClient struct {
	inner Client

	mu      sync.Mutex
	text    map[string]string
	typed   map[string]json.RawMessage
	hits    int
	lookups int
}

// NewCachedClient wraps inner with a run-scoped response cache.
func NewCachedClient(inner Client) *CachedClient {
	return &CachedClient{
		inner: inner,
		text:  make(map[string]string),
		typed: make(map[string]json.RawMessage),
	}
}

// Invoke returns the cached text response for prompt, calling the inner
// client on first sight.
func (c *CachedClient) Invoke(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(prompt)

	c.mu.Lock()
	c.lookups++
	if cached, ok := c.text[key]; ok {
		c.hits++
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	out, err := c.inner.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.text[key] = out
	c.mu.Unlock()
	return out, nil
}

// InvokeStructured decodes the cached structured response into out, calling
// the inner client on first sight. Only successful responses are cached, so
// a retried prompt reaches the model again.
func (c *CachedClient) InvokeStructured(ctx context.Context, prompt string, out any) error {
	key := cacheKey(prompt)

	c.mu.Lock()
	c.lookups++
	cached, ok := c.typed[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()

	if ok {
		if err := json.Unmarshal(cached, out); err != nil {
			return &SchemaValidationError{Detail: "decode cached response", Cause: err}
		}
		return nil
	}

	if err := c.inner.InvokeStructured(ctx, prompt, out); err != nil {
		return err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		// The value decoded but cannot round-trip; skip caching it.
		return nil
	}

	c.mu.Lock()
	c.typed[key] = raw
	c.mu.Unlock()
	return nil
}

// Stats returns cache hits and total lookups for observability.
func (c *CachedClient) Stats() (hits, lookups int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.lookups
}

// Close releases the cached responses. The client must not be used after
// Close.
func (c *CachedClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = nil
	c.typed = nil
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
