package contracts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	spec, err := Load(context.Background())
	require.NoError(t, err)

	for _, path := range []string{
		"/api/v1/bookings",
		"/api/v1/bookings/{bookingId}/cancel",
		"/api/v1/users",
		"/api/v1/users/{userId}",
		"/api/v1/platform/tenants",
		"/api/v1/platform/tenants/{tenantId}/status",
	} {
		require.NotNil(t, spec.Paths.Find(path), path)
	}
	require.Contains(t, spec.Components.SecuritySchemes, "bearerAuth")
}
