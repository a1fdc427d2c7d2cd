package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	assert.Equal(t, "", PlainText(""))
	assert.Equal(t, "tooth ache", PlainText("  <b>tooth</b> ache "))
	assert.Equal(t, "", PlainText(`<script>alert("x")</script>`))
	assert.Equal(t, "Tom & Jerry", PlainText("Tom & Jerry"))
}

func TestPasswordMatches(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	ok, err := PasswordMatches(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = PasswordMatches(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = PasswordMatches("not-a-hash", "x")
	assert.Error(t, err)
}
