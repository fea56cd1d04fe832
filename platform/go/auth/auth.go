package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "VENUEDESK_USER_CREDENTIALS"
)

// Tenant roles carried in the "role" claim.
const (
	RoleTenantAdmin = "tenant_admin"
	RoleStaff       = "staff"
)

type UserCredentials struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          *string
	IsAdmin       bool
	TenantID      *string
	Role          string
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	u, ok := ctx.Value(ctxUserCredentials).(*UserCredentials)
	return u, ok && u != nil
}

// WithUser attaches credentials to ctx. Used by the JWT middleware and by tests.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// VerifyFunc validates the incoming JWT and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]interface{}) (*UserCredentials, error)

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a bearer token pass through unauthenticated; routes that need a user enforce it.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractJWTToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description=%q`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// DefaultCredentialExtractor converts standard claims into UserCredentials.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := fallbackStringClaim(claims, []string{"uid", "user_id", "sub"}, "")
	if id == "" {
		return nil, errors.New("missing subject claim")
	}

	return &UserCredentials{
		ID:            id,
		Email:         extractStringClaim(claims, "email"),
		EmailVerified: extractBoolClaim(claims, "email_verified"),
		Name:          extractOptionalStringClaim(claims, "name"),
		IsAdmin:       extractBoolClaim(claims, "isAdmin"),
		TenantID:      extractTenantID(claims),
		Role:          extractStringClaim(claims, "role"),
	}, nil
}

func extractBoolClaim(claims map[string]interface{}, key string) bool {
	if v, ok := claims[key]; ok {
		if boolVal, valid := v.(bool); valid {
			return boolVal
		}
	}
	return false
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func extractOptionalStringClaim(claims map[string]interface{}, key string) *string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid && strVal != "" {
			return &strVal
		}
	}
	return nil
}

// extractTenantID prefers the top-level tenantId claim and falls back to the
// Firebase multi-tenancy claim.
func extractTenantID(claims map[string]interface{}) *string {
	if tenant := extractOptionalStringClaim(claims, "tenantId"); tenant != nil {
		return tenant
	}

	firebaseClaim, ok := claims["firebase"].(map[string]interface{})
	if !ok {
		return nil
	}
	if tenant, ok := firebaseClaim["tenant"].(string); ok && tenant != "" {
		return &tenant
	}
	return nil
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}

func fallbackStringClaim(claims map[string]interface{}, keys []string, def string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return def
}

// FirebaseTokenVerifier returns a VerifyFunc that validates tokens via Firebase Auth.
func FirebaseTokenVerifier(fbAuth *auth.Client) VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		t, err := fbAuth.VerifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}

		claims := make(map[string]interface{}, len(t.Claims)+2)
		for k, v := range t.Claims {
			claims[k] = v
		}
		claims["uid"] = t.UID
		claims["sub"] = t.Subject
		if tenant := t.Firebase.Tenant; tenant != "" {
			if firebaseClaim, ok := claims["firebase"].(map[string]interface{}); ok {
				firebaseClaim["tenant"] = tenant
				claims["firebase"] = firebaseClaim
			} else {
				claims["firebase"] = map[string]interface{}{"tenant": tenant}
			}
		}

		return claims, nil
	}
}

// UnsignedTokenVerifier returns a VerifyFunc that decodes unsigned JWT payloads without validation.
// Local development only.
func UnsignedTokenVerifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

// RequireRole gates a route on the caller's credentials. "admin" means the
// platform operator claim; any other value must equal the tenant role claim.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			allowed := false
			switch role {
			case "admin":
				allowed = creds.IsAdmin
			case "":
			default:
				allowed = creds.Role == role
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
