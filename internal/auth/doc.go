// Package auth verifies caller identity for league-gateway.
//
// # Token Verification
//
// Callers authenticate with RS256-signed bearer tokens issued by an external
// authorization service. The gateway never holds a shared secret: it fetches
// the issuer's public signing keys from the well-known JWKS discovery URL
// and verifies the token signature locally.
//
//	verifier := auth.NewVerifier(auth.Config{KeyTTL: 5 * time.Minute})
//	ident, err := verifier.Authenticate(r)
//
// Every failure carries a stable reason code:
//
//   - malformed: not a Bearer header, not a compact JWT, or missing claims
//   - unsupported_alg: the token is not RSA-signed
//   - missing_kid: no key identifier in the token header
//   - key_not_found: the kid is absent from the issuer's key set
//     (possible rotation; retry after the cache TTL, not immediately)
//   - expired: the token's expiry has passed
//   - bad_signature: signature verification failed
//
// # Key Cache
//
// Key sets are cached process-wide, one entry per issuer, with a fixed TTL
// checked on every read. The cache is not authoritative state: losing it
// only costs a refetch.
//
// # Development Mode
//
// With DevelopmentMode enabled the X-Dev-Subject header is accepted as an
// identity without a token. This is a deliberate, narrow deviation for local
// development and is off unless explicitly configured.
package auth
