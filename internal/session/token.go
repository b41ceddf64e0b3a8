package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LooksLikeToken is a crude sanity check on tokens returned by the server.
// It accepts anything longer than ten characters.
func LooksLikeToken(s string) bool {
	return len(s) > 10
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key; the server stays the authority.
// ok is false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}
