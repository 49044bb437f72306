package certificate

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^WC-[ABCDEFGHJKMNPQRSTVWXYZ23456789]{4}-[ABCDEFGHJKMNPQRSTVWXYZ23456789]{4}$`)

func TestGenerateCodeFormat(t *testing.T) {
	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestGenerateCodeAvoidsAmbiguousCharacters(t *testing.T) {
	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.NotContains(t, code[3:], "0")
		assert.NotContains(t, code[3:], "O")
		assert.NotContains(t, code[3:], "1")
		assert.NotContains(t, code[3:], "I")
		assert.NotContains(t, code[3:], "L")
	}
}

// Not a uniqueness proof, just a sanity check that generation is not
// degenerate: 10k draws from the code space should not collide.
func TestGenerateCodeSpread(t *testing.T) {
	seen := make(map[string]struct{}, 10_000)
	for range 10_000 {
		code, err := GenerateCode()
		require.NoError(t, err)
		if _, dup := seen[code]; dup {
			t.Fatalf("unexpected collision in 10k draws: %s", code)
		}
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 10_000)
}

// Every byte below the rejection limit maps onto the alphabet uniformly;
// bytes at or above it are discarded instead of folded back in.
func TestAppendCodeCharsRejectsBiasedBytes(t *testing.T) {
	limit := 256 - 256%len(codeAlphabet)
	require.Equal(t, 240, limit)

	out := appendCodeChars(make([]byte, 0, 8), []byte{0, 29, 30, 240, 255, 239})
	assert.Equal(t, []byte{
		codeAlphabet[0],
		codeAlphabet[29],
		codeAlphabet[0],
		codeAlphabet[239%len(codeAlphabet)],
	}, out)

	full := appendCodeChars(make([]byte, 0, 2), []byte{1, 2, 3, 4})
	assert.Len(t, full, 2)
}

func TestCodeIsNotAHashInput(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.False(t, IsHashInput(code))
	assert.True(t, strings.HasPrefix(code, "WC-"))
}
