// ABOUTME: Typed authentication errors with stable reason codes
// ABOUTME: Every verification failure maps to exactly one Reason

package auth

import (
	"errors"
	"fmt"
)

// Reason is a stable machine-readable code describing why verification failed.
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonUnsupportedAlg Reason = "unsupported_alg"
	ReasonMissingKid     Reason = "missing_kid"
	ReasonKeyNotFound    Reason = "key_not_found"
	ReasonExpired        Reason = "expired"
	ReasonBadSignature   Reason = "bad_signature"
)

// ErrNoCredentials indicates the request carried no bearer token at all.
// Callers use this to distinguish the initial "please authenticate"
// challenge from the "re-authenticate" challenge for rejected tokens.
var ErrNoCredentials = errors.New("no credentials provided")

// AuthError is a typed verification failure. It always carries a Reason;
// Err holds the underlying cause when one exists.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token verification failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token verification failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// authError builds an *AuthError wrapped as a plain error.
func authError(reason Reason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// ReasonOf extracts the Reason from an error chain, or "" if the error is
// not an AuthError.
func ReasonOf(err error) Reason {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
