package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	hash, err := GetHash("s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, CompareHash(hash, "s3cret-pass"))
	assert.Error(t, CompareHash(hash, "wrong-pass"))
}

func TestGetHash_DistinctSalts(t *testing.T) {
	first, err := GetHash("same-password")
	require.NoError(t, err)
	second, err := GetHash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
