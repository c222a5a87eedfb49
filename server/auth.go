package server

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies RS256 bearer tokens.
type Authenticator struct {
	key      *rsa.PublicKey
	audience string
	issuer   string
}

// NewAuthenticator checks tokens against key. Empty audience or issuer
// skips that claim.
func NewAuthenticator(key *rsa.PublicKey, audience, issuer string) *Authenticator {
	return &Authenticator{key: key, audience: audience, issuer: issuer}
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// Verify parses a signed token and returns its claims.
func (a *Authenticator) Verify(signed string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired()}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return a.key, nil }, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		signed, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || signed == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pdfstamp"`)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := a.Verify(signed); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
