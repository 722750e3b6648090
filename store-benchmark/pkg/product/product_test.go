package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContent(t *testing.T) {
	products := Generate([]uint64{0, 1, 255, 256, 1000})
	require.Len(t, products, 5)

	sizes := []int{0, 1, 255, 256, 1000}
	for i, p := range products {
		require.Equal(t, sizes[i], p.Size())
		for j, b := range p.Data {
			if b != byte(j%256) {
				t.Fatalf("product %d byte %d: got %d want %d", i, j, b, j%256)
			}
		}
	}
	assert.Equal(t, byte(0), products[4].Data[256])
	assert.Equal(t, byte(231), products[4].Data[999])
}

func TestGenerateEmpty(t *testing.T) {
	assert.Empty(t, Generate(nil))
}

func TestEqual(t *testing.T) {
	p := New(300)
	assert.True(t, p.Equal(New(300).Data))
	assert.False(t, p.Equal(New(299).Data))

	corrupted := New(300).Data
	corrupted[17] ^= 0xff
	assert.False(t, p.Equal(corrupted))
}
