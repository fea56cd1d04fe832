package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
	"github.com/zenGate-Global/venuedesk/platform/go/gcp"
)

var (
	errJWTKeyRequired      = errors.New("JWT_SIGNING_KEY is required when AUTH_PROVIDER=jwt")
	errUnsupportedProvider = errors.New("unsupported auth provider (use firebase, jwt or dev)")
)

// buildAuthMiddleware picks the token verifier for AUTH_PROVIDER. Tenant claims
// are checked later by the tenant identity middleware, so platform operators
// without a tenant can still reach the platform routes.
func buildAuthMiddleware(ctx context.Context, cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	verify, err := buildVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal("init auth verifier", zap.String("provider", cfg.AuthProvider), zap.Error(err))
	}
	if cfg.AuthProvider == "dev" {
		logger.Warn("using dev auth middleware; do not use in production")
	}
	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor)
}

func buildVerifier(ctx context.Context, cfg config) (platformauth.VerifyFunc, error) {
	switch cfg.AuthProvider {
	case "firebase":
		fbAuth, err := gcp.InitFirebaseAuth(ctx, gcp.FirebaseConfig{
			CredentialsFile: cfg.FirebaseCreds,
			ProjectID:       cfg.FirebaseProjectID,
		})
		if err != nil {
			return nil, err
		}
		return platformauth.FirebaseTokenVerifier(fbAuth), nil
	case "jwt":
		if cfg.JWTSigningKey == "" {
			return nil, errJWTKeyRequired
		}
		return platformauth.HMACTokenVerifier([]byte(cfg.JWTSigningKey)), nil
	case "dev":
		return platformauth.UnsignedTokenVerifier(), nil
	default:
		return nil, errUnsupportedProvider
	}
}
