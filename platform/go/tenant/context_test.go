package tenant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromContextWithoutIdentity(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, err := Require(context.Background())
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestNestedIdentityRestoresOuter(t *testing.T) {
	outer := Identity{TenantID: "tenant-a", UserID: "u1", Role: "tenant_admin"}
	inner := Identity{TenantID: "tenant-b", UserID: "u2", Role: "staff"}

	err := Run(context.Background(), outer, func(ctx context.Context) error {
		err := Run(ctx, inner, func(ctx context.Context) error {
			got, err := Require(ctx)
			require.NoError(t, err)
			require.Equal(t, inner, got)
			return nil
		})
		require.NoError(t, err)

		got, err := Require(ctx)
		require.NoError(t, err)
		require.Equal(t, outer, got)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentIdentitiesDoNotLeak(t *testing.T) {
	const workers = 32

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := Identity{TenantID: fmt.Sprintf("tenant-%d", i), Role: "staff"}
			errs <- Run(context.Background(), want, func(ctx context.Context) error {
				// yield so other workers interleave between set and read
				time.Sleep(time.Duration(i%4) * time.Millisecond)
				got, err := Require(ctx)
				if err != nil {
					return err
				}
				if got != want {
					return fmt.Errorf("worker %d observed %+v", i, got)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestIdentityValidate(t *testing.T) {
	require.NoError(t, Identity{TenantID: "t", Role: "r"}.Validate())
	require.ErrorIs(t, Identity{TenantID: " ", Role: "r"}.Validate(), ErrIncompleteIdentity)
	require.ErrorIs(t, Identity{TenantID: "t"}.Validate(), ErrIncompleteIdentity)
}
