package tenant

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugBase = 48

// Slugify lowercases name and collapses every run of non alphanumeric characters into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > maxSlugBase {
		slug = strings.TrimSuffix(slug[:maxSlugBase], "-")
	}
	return slug
}

// ShortID returns the first 8 hexadecimal characters of a UUID (without dashes).
func ShortID(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	if len(hex) < 8 {
		return hex
	}
	return hex[:8]
}

// BuildSlug returns `<slugified name>-<shortId>`, or `tenant-<shortId>` when the
// name has no usable characters.
func BuildSlug(name string, id uuid.UUID) string {
	base := Slugify(name)
	if base == "" {
		base = "tenant"
	}
	return base + "-" + ShortID(id)
}
