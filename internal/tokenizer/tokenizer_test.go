//go:build integration

package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The cl100k_base vocabulary is fetched on first load, so these tests run
// under the integration tag only.

func TestLoad_SharedInstance(t *testing.T) {
	first, err := Load()
	require.NoError(t, err)

	second, err := Load()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestCountTokens(t *testing.T) {
	tok, err := Load()
	require.NoError(t, err)

	assert.Zero(t, tok.CountTokens(""))
	assert.Greater(t, tok.CountTokens("hello world"), 0)

	// Token count equals the encoded sequence length
	text := "Document ingestion splits text into token-bounded chunks."
	assert.Equal(t, len(tok.Encode(text)), tok.CountTokens(text))
}
