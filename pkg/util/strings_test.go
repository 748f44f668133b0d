package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFloat(t *testing.T) {
	v, ok := ParseFloat("14.75")
	assert.True(t, ok)
	assert.Equal(t, 14.75, v)

	for _, s := range []string{"", "abc", "1.2.3"} {
		_, ok := ParseFloat(s)
		assert.False(t, ok, s)
	}
}
