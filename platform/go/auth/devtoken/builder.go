package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Params captures the claims of a development token. No environment variables
// are read so the builder stays deterministic for tooling and tests.
type Params struct {
	Issuer    string        // iss; defaults to "venuedesk-dev"
	Audience  string        // optional aud
	UserID    string        // sub/uid (required)
	Email     string        // email claim (required)
	Name      string        // display name (optional)
	TenantID  string        // tenantId claim; required when Role is set
	Role      string        // tenant role, e.g. tenant_admin or staff
	IsAdmin   bool          // platform operator flag
	ExpiresIn time.Duration // relative expiry; default 1h if zero
}

func (p Params) claims(now time.Time) (jwt.MapClaims, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, errors.New("userID is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return nil, errors.New("email is required")
	}
	if strings.TrimSpace(p.Role) != "" && strings.TrimSpace(p.TenantID) == "" {
		return nil, errors.New("tenantID is required when role is set")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}
	issuer := p.Issuer
	if strings.TrimSpace(issuer) == "" {
		issuer = "venuedesk-dev"
	}

	claims := jwt.MapClaims{
		"iss":     issuer,
		"sub":     p.UserID,
		"uid":     p.UserID,
		"iat":     now.Unix(),
		"exp":     now.Add(expiresIn).Unix(),
		"email":   p.Email,
		"isAdmin": p.IsAdmin,
	}
	if p.Audience != "" {
		claims["aud"] = p.Audience
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if p.TenantID != "" {
		claims["tenantId"] = p.TenantID
	}
	if p.Role != "" {
		claims["role"] = p.Role
	}
	return claims, nil
}

// BuildUnsignedToken returns a JWT string with alg "none" and no signature,
// accepted only when AUTH_PROVIDER=dev.
func BuildUnsignedToken(p Params, now time.Time) (string, error) {
	claims, err := p.claims(now)
	if err != nil {
		return "", err
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payloadSegment, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s.", headerSegment, payloadSegment), nil
}

// BuildSignedToken returns an HS256 token verifiable with auth.HMACTokenVerifier(key).
func BuildSignedToken(p Params, key []byte, now time.Time) (string, error) {
	if len(key) == 0 {
		return "", errors.New("signing key is required")
	}
	claims, err := p.claims(now)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
