package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired checks the exp claim without verifying the signature;
// the client holds no signing key, the server is the authority either
// way. Unparseable tokens count as expired.
func TokenExpired(tok string) bool {
	if tok == "" {
		return true
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(time.Now())
}
