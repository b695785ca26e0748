package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleState_IsFresh(t *testing.T) {
	a := SampleState()
	a.Books[0] = "changed"

	b := SampleState()
	assert.Equal(t, "Dune;SciFi;Herbert", b.Books[0])
	require.Len(t, b.Owners, 2)
	assert.Equal(t, uint32(1), b.Owners[1].RecordIndex)
}

func TestTokenList(t *testing.T) {
	assert.Equal(t, []string{"flow-1", "flow-2", "flow-3"}, TokenList("flow", 3))
	assert.Empty(t, TokenList("flow", 0))
}

func TestTokens_YieldsInOrder(t *testing.T) {
	gen := Tokens("t", 2)

	assert.Equal(t, "t-1", gen.Generate())
	assert.Equal(t, "t-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
