// ABOUTME: Client-side inspection of stored bearer tokens.
// ABOUTME: Checks expiry and extracts the subject claim without verifying the signature.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// The client never holds the server's signing secret, so claims are read
// without signature verification. The server remains the authority; this
// only avoids sending tokens that are already expired.
var parser = jwt.NewParser()

// Subject extracts the "sub" claim (the user identifier) from a token.
func Subject(tokenString string) (string, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// ExpiresAt returns the "exp" claim. Tokens without an expiry return the
// zero time and no error.
func ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: exp", ErrInvalidToken)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Expired reports whether a token carries an expiry in the past. Malformed
// tokens count as expired so they are never attached to requests.
func Expired(tokenString string) bool {
	exp, err := ExpiresAt(tokenString)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return time.Now().After(exp)
}

func parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
