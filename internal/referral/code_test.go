package referral_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimalsupps/storefront/internal/referral"
)

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := referral.NewCode()
		require.NoError(t, err)
		assert.Len(t, code, 9)
		assert.True(t, strings.HasPrefix(code, "OPT"), "code %q missing prefix", code)
		assert.True(t, referral.ValidCode(code), "generated code %q not valid", code)
	}
}

func TestNewCodeExcludesAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := referral.NewCode()
		require.NoError(t, err)
		for _, c := range []string{"0", "O", "1", "I"} {
			assert.NotContains(t, code[3:], c, "code %q contains ambiguous character", code)
		}
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, referral.ValidCode("OPTABCDEF"))
	assert.False(t, referral.ValidCode("optabcdef")) // lowercase
	assert.False(t, referral.ValidCode("OPTABCDE"))  // too short
	assert.False(t, referral.ValidCode("OPTABCDEFG"))
	assert.False(t, referral.ValidCode("XYZABCDEF")) // wrong prefix
	assert.False(t, referral.ValidCode("OPTABC0EF")) // ambiguous char
	assert.False(t, referral.ValidCode("OPTABC1EF"))
	assert.False(t, referral.ValidCode(""))
}
