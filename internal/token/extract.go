// Package token decodes claim records out of signed session tokens.
//
// Nothing in this package verifies signatures or expiry. ExtractClaims is a
// convenience decoder for tokens that were already issued and verified by the
// session/token provider; it must never be used as a security boundary on
// its own. Callers that accept tokens from anywhere other than the provider
// are trusting unverified input.
package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/lumina-lms/lumina-authz/internal/claims"
)

// ExtractClaims decodes the payload segment of a signed token into a claim
// record without any network call or signature check. Malformed input (wrong
// segment count, invalid encoding, non-object payload) yields nil, never an
// error: callers treat nil as "no usable claims", equivalent to an anonymous
// principal.
//
// Known payload fields map onto the record with the documented defaults
// (permissions empty, isActive true, accessLevel 0 when absent); unknown
// fields are ignored for forward compatibility.
func ExtractClaims(signedToken string) *claims.Record {
	if signedToken == "" {
		return nil
	}
	parser := jwt.NewParser()
	payload := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(signedToken, payload); err != nil {
		return nil
	}
	rec := claims.RecordFromMap(map[string]any(payload))
	if rec == nil {
		return nil
	}
	// Token payloads only carry what the authority stamped. An absent
	// accessLevel stays 0 here; deriving from the role is the catalog's job,
	// not the decoder's.
	if _, present := payload["accessLevel"]; !present {
		rec.AccessLevel = 0
	}
	return rec
}
