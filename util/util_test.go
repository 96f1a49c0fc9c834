package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.25, Clamp(0.1, 0.25, 2.0))
	assert.Equal(2.0, Clamp(3.0, 0.25, 2.0))
	assert.Equal(1.5, Clamp(1.5, 0.25, 2.0))
	assert.Equal(5, Clamp(1, 5, 3))
}

func TestSortedKeys(t *testing.T) {
	m := map[uint8]bool{67: true, 60: true, 64: true}
	assert.Equal(t, []uint8{60, 64, 67}, SortedKeys(m))
}
