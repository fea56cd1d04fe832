package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractJWTToken returns the bearer token from the Authorization header.
func ExtractJWTToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	// Case-insensitive prefix match.
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// HMACTokenVerifier validates HS256 tokens signed with key. Tokens must carry an exp claim.
func HMACTokenVerifier(key []byte) VerifyFunc {
	if len(key) == 0 {
		panic("auth.HMACTokenVerifier: signing key must not be empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil {
			return nil, fmt.Errorf("verify token: %w", err)
		}
		if !parsed.Valid {
			return nil, errors.New("verify token: invalid")
		}
		return map[string]interface{}(claims), nil
	}
}
