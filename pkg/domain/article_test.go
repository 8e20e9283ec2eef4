package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeID(t *testing.T) {
	id := MakeID("https://example.com/a", "Some Title")
	assert.Len(t, id, 32)
	assert.Equal(t, id, MakeID("https://example.com/a", "Some Title"), "stable across calls")
	assert.NotEqual(t, id, MakeID("https://example.com/b", "Some Title"))
	assert.NotEqual(t, id, MakeID("https://example.com/a", "Other Title"))

	// separator prevents url/title boundary ambiguity
	assert.NotEqual(t, MakeID("ab", "c"), MakeID("a", "bc"))
}
