package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDRoundTrip(t *testing.T) {
	u := GenerateUUID()
	require.True(t, u.Valid())

	s := u.String()
	require.Len(t, s, 36)
	for _, i := range []int{8, 13, 18, 23} {
		assert.Equal(t, byte('-'), s[i])
	}

	parsed := ParseUUID(s)
	assert.True(t, parsed.Equal(u))
	assert.Equal(t, u.Hash(), parsed.Hash())
}

func TestUUIDParseRejectsIllFormed(t *testing.T) {
	bad := []string{
		"",
		"not-a-uuid",
		"123e4567-e89b-12d3-a456-4266141740",                // too short
		"123e4567-e89b-12d3-a456-42661417400012",            // too long
		"123E4567-E89B-12D3-A456-426614174000",              // uppercase
		"123e4567ae89ba12d3aa456a426614174000",              // missing hyphens
		"123e4567-e89b-12d3-a456-42661417400g",              // non-hex
		"{123e4567-e89b-12d3-a456-426614174000}",            // braces
		"urn:uuid:123e4567-e89b-12d3-a456-426614174000",     // urn form
	}
	for _, s := range bad {
		assert.False(t, ParseUUID(s).Valid(), "input %q", s)
	}
}

func TestUUIDEmptyIsInvalid(t *testing.T) {
	var zero UUID
	assert.False(t, zero.Valid())
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", zero.String())
}

func TestUUIDGenerateDistinct(t *testing.T) {
	seen := make(map[UUID]struct{})
	for i := 0; i < 1000; i++ {
		u := GenerateUUID()
		_, dup := seen[u]
		require.False(t, dup)
		seen[u] = struct{}{}
	}
}
