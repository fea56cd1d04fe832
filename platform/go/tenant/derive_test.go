package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme":                 "acme",
		"  The Grand Hall  ":   "the-grand-hall",
		"Café & Bar -- Rooftop": "caf-bar-rooftop",
		"***":                  "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestBuildSlug(t *testing.T) {
	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	require.Equal(t, "acme-1b4e28ba", BuildSlug("Acme", id))
	require.Equal(t, "tenant-1b4e28ba", BuildSlug("!!!", id))
}
