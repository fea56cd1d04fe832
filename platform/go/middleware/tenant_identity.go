package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
	"github.com/zenGate-Global/venuedesk/platform/go/httpjson"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

// Resolver checks that the tenant named by an identity exists and is active.
// Implemented by the tenant registry. Rejections wrap tenant.ErrUnavailable.
type Resolver interface {
	ResolveIdentity(ctx context.Context, id tenant.Identity) error
}

// Config controls middleware behavior.
type Config struct {
	// Optional small in-memory TTL cache to avoid DB hits; zero disables caching.
	CacheTTL time.Duration
}

// TenantIdentity turns the verified credentials into a tenant.Identity and
// attaches it to the request context. Requests without a tenant claim, with an
// unknown role, or for an unavailable tenant are rejected with 403.
func TenantIdentity(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	var cache *tenantCache
	if cfg.CacheTTL > 0 {
		cache = newTenantCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok || creds.TenantID == nil || strings.TrimSpace(*creds.TenantID) == "" {
				forbidden(w, "tenant claim required")
				return
			}
			if !platformauth.ValidRole(creds.Role) {
				forbidden(w, "tenant role required")
				return
			}

			id := tenant.Identity{
				TenantID: strings.TrimSpace(*creds.TenantID),
				UserID:   creds.ID,
				Role:     creds.Role,
			}

			if !cache.fresh(id.TenantID) {
				if err := resolver.ResolveIdentity(r.Context(), id); err != nil {
					if errors.Is(err, tenant.ErrUnavailable) {
						forbidden(w, "tenant unavailable")
						return
					}
					platformlogging.FromRequest(r, zap.NewNop()).Error("resolve tenant identity", zap.String("tenant_id", id.TenantID), zap.Error(err))
					httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusInternalServerError, "Internal error", "internal error", httpjson.ProblemTypeInternal))
					return
				}
				cache.put(id.TenantID)
			}

			ctx := tenant.WithIdentity(r.Context(), id)
			if logger, ok := platformlogging.FromContext(ctx); ok {
				ctx = platformlogging.WithLogger(ctx, platformlogging.WithTenant(logger, id.TenantID, "", id.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func forbidden(w http.ResponseWriter, detail string) {
	httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusForbidden, "Forbidden", detail, httpjson.ProblemTypeForbidden))
}

// tenantCache remembers tenants that resolved successfully. A deactivated
// tenant keeps access until its entry expires.
type tenantCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]time.Time
}

func newTenantCache(ttl time.Duration) *tenantCache {
	return &tenantCache{ttl: ttl, now: time.Now, items: make(map[string]time.Time)}
}

func (c *tenantCache) fresh(tenantID string) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.items[tenantID]
	if !ok {
		return false
	}
	if c.now().After(expiresAt) {
		delete(c.items, tenantID)
		return false
	}
	return true
}

func (c *tenantCache) put(tenantID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[tenantID] = c.now().Add(c.ttl)
}
