package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplete(t *testing.T) {
	// Known-good vectors for the 7-3-1 scheme.
	assert.Equal(t, "13", Complete("1"))
	assert.Equal(t, "1232", Complete("123"))
	assert.Equal(t, "4462", Complete("446"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("1232"))
	assert.True(t, Valid(Complete("987654321")))

	assert.False(t, Valid("1231"), "wrong check digit")
	assert.False(t, Valid("1"), "too short")
	assert.False(t, Valid("12a2"), "non-numeric")
	assert.False(t, Valid(""))
}
