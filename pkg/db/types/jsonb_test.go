package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBScanAcceptsTextAndBytes(t *testing.T) {
	var fromText JSONB
	require.NoError(t, fromText.Scan(`{"fee":"0.10"}`))

	var fromBytes JSONB
	require.NoError(t, fromBytes.Scan([]byte(`{"fee":"0.10"}`)))

	assert.Equal(t, fromText, fromBytes)

	var out map[string]string
	require.NoError(t, fromText.Decode(&out))
	assert.Equal(t, "0.10", out["fee"])
}

func TestJSONBScanRejectsUnknownTypes(t *testing.T) {
	var j JSONB
	assert.Error(t, j.Scan(42))
}

func TestJSONBValueEmptyIsNull(t *testing.T) {
	v, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	j, err := NewJSONB(map[string]int{"n": 1})
	require.NoError(t, err)
	v, err = j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, v)
}
