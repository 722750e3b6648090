package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTake(t *testing.T) {
	buf := make([]byte, 1<<20)
	buf[len(buf)-1] = 1

	s := Take()
	assert.Positive(t, s.PeakRSSBytes)
	assert.Positive(t, s.HeapSys)
	assert.Equal(t, byte(1), buf[len(buf)-1])
}
