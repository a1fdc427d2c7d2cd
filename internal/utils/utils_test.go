package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := ParseID(raw)
		assert.ErrorIs(t, err, ErrInvalidID, raw)
	}
}

func TestParseOptionalID(t *testing.T) {
	id, err := ParseOptionalID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = ParseOptionalID("7")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)
}

func TestCacheKeysShareDirectoryPrefix(t *testing.T) {
	assert.Equal(t, "clinics:v1:list:status=open:q=cebu", ClinicsListCacheKey(" Open", "Cebu "))
	assert.Contains(t, ClinicDetailCacheKey(5), DirectoryCachePrefix)
	assert.Contains(t, ClinicMapCacheKey(), DirectoryCachePrefix)
}
