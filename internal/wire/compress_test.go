package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapSmallPayloadUncompressed(t *testing.T) {
	payload := []byte("small payload")
	wrapped, err := WrapPayload(payload, true)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(wrapped, &env))
	assert.False(t, env.Compressed)

	out, err := UnwrapPayload(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestWrapUnwrapLargePayloadCompressed(t *testing.T) {
	payload := []byte(strings.Repeat("a", CompressThreshold*4))
	wrapped, err := WrapPayload(payload, true)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(wrapped, &env))
	assert.True(t, env.Compressed)

	out, err := UnwrapPayload(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestWrapWithoutCompressionNeverCompresses(t *testing.T) {
	payload := []byte(strings.Repeat("a", CompressThreshold*4))
	wrapped, err := WrapPayload(payload, false)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(wrapped, &env))
	assert.False(t, env.Compressed)
}
