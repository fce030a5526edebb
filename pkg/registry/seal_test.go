package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSealDeterministic(t *testing.T) {
	urls := []string{"https://k.example/a", "https://k.example/b"}
	assert.Equal(t, computeSeal(urls), computeSeal(urls))
}

func TestComputeSealSensitiveToOrder(t *testing.T) {
	a := computeSeal([]string{"https://k.example/a", "https://k.example/b"})
	b := computeSeal([]string{"https://k.example/b", "https://k.example/a"})
	assert.NotEqual(t, a, b)
}

func TestComputeSealIs32HexChars(t *testing.T) {
	seal := computeSeal([]string{"https://k.example/a"})
	assert.Len(t, seal, 32) // 16 bytes, hex-encoded
}

func TestComputeSealHandlesNilSlice(t *testing.T) {
	assert.NotPanics(t, func() { computeSeal(nil) })
}
