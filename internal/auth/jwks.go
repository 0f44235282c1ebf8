// ABOUTME: JWKS fetching and caching for issuer signing keys
// ABOUTME: Process-wide cache keyed by issuer with a fixed TTL, expiry checked on read

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// jwksPath is the well-known discovery path appended to the issuer URL.
const jwksPath = "/.well-known/jwks.json"

// maxJWKSBodySize bounds the key-set response body (256 KB).
const maxJWKSBodySize = 256 << 10

// jwk is a single JSON Web Key as served by the issuer's discovery endpoint.
// Only RSA signing keys are considered; everything else is skipped.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// keySet maps key IDs to parsed RSA public keys.
type keySet map[string]*rsa.PublicKey

// cacheEntry is one issuer's fetched key set with its fetch time.
// Losing an entry is safe; it only costs a refetch.
type cacheEntry struct {
	keys      keySet
	fetchedAt time.Time
}

// keyCache caches key sets per issuer. Reads check expiry explicitly; a
// refresh replaces the entry wholesale (last-writer-wins, the data is
// idempotent). One entry per distinct issuer, so growth is bounded.
type keyCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	client  *http.Client

	// now is stubbed in tests
	now func() time.Time
}

func newKeyCache(ttl time.Duration, client *http.Client) *keyCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &keyCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		client:  client,
		now:     time.Now,
	}
}

// get returns the cached key set for the issuer, fetching it if absent or
// expired.
func (c *keyCache) get(ctx context.Context, issuer string) (keySet, error) {
	c.mu.RLock()
	entry, ok := c.entries[issuer]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.keys, nil
	}

	keys, err := c.fetch(ctx, issuer)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[issuer] = cacheEntry{keys: keys, fetchedAt: c.now()}
	c.mu.Unlock()

	return keys, nil
}

// fetch retrieves and parses the issuer's key set from its discovery URL.
func (c *keyCache) fetch(ctx context.Context, issuer string) (keySet, error) {
	url := strings.TrimSuffix(issuer, "/") + jwksPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching JWKS from %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing JWKS response: %w", err)
	}

	keys := make(keySet)
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			// Skip unparseable keys rather than failing the whole set
			continue
		}
		keys[k.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no usable RSA signing keys at %s", url)
	}

	return keys, nil
}

// parseRSAKey converts a JWK's base64url modulus and exponent into an
// rsa.PublicKey.
func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
