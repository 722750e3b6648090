// Package product builds the synthetic payloads written by every rank.
package product

import "bytes"

// Product is a synthetic payload of a fixed size.
// Byte j of Data is j mod 256.
type Product struct {
	Data []byte
}

// New returns a product of the given size.
func New(size uint64) Product {
	data := make([]byte, size)
	for j := range data {
		data[j] = byte(j % 256)
	}
	return Product{Data: data}
}

// Generate returns one product per size, index-aligned with sizes.
func Generate(sizes []uint64) []Product {
	products := make([]Product, len(sizes))
	for i, size := range sizes {
		products[i] = New(size)
	}
	return products
}

// Size returns the payload length in bytes.
func (p Product) Size() int {
	return len(p.Data)
}

// Equal reports whether data is byte-for-byte identical to the product.
func (p Product) Equal(data []byte) bool {
	return bytes.Equal(p.Data, data)
}
