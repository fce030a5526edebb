package urlcanon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const base = "https://k.example"

func TestCanonicalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Canonicalize("", base))
	assert.Equal(t, "", Canonicalize("   ", base))
}

func TestCanonicalizeBareToken(t *testing.T) {
	got := Canonicalize("ABCDEFGHIJKLMNOP", base)
	assert.Equal(t, "https://k.example/stream/p/ABCDEFGHIJKLMNOP", got)
}

func TestCanonicalizeBareTokenTooShortIsNotBare(t *testing.T) {
	// Under 16 chars: not treated as a bare token, resolved as a relative path instead.
	got := Canonicalize("short", base)
	assert.Equal(t, "https://k.example/short", got)
}

func TestCanonicalizeRelative(t *testing.T) {
	got := Canonicalize("/stream/p/XYZ123", base)
	assert.Equal(t, "https://k.example/stream/p/XYZ123", got)
}

func TestCanonicalizeLowercasesSchemeAndHostOnly(t *testing.T) {
	got := Canonicalize("HTTPS://K.Example/Stream/P/AbC?Foo=Bar#Frag", base)
	assert.Equal(t, "https://k.example/Stream/P/AbC?Foo=Bar#Frag", got)
}

func TestCanonicalizeShortRouteRewrite(t *testing.T) {
	got := Canonicalize("https://k.example/p~ABCDEFGHIJKLMNOP?p=QRSTUVWX", base)
	assert.Equal(t, "https://k.example/stream/p/ABCDEFGHIJKLMNOP?p=QRSTUVWX", got)
}

func TestCanonicalizeStreamShortRouteRewrite(t *testing.T) {
	got := Canonicalize("https://k.example/stream/p~ABCDEFGHIJKLMNOP#add=u1", base)
	assert.Equal(t, "https://k.example/stream/p/ABCDEFGHIJKLMNOP#add=u1", got)
}

func TestCanonicalizeStreamCUnchanged(t *testing.T) {
	got := Canonicalize("https://k.example/stream/c/0123456789abcdef", base)
	assert.Equal(t, "https://k.example/stream/c/0123456789abcdef", got)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"ABCDEFGHIJKLMNOP",
		"https://k.example/p~ABCDEFGHIJKLMNOP?p=QRSTUVWX",
		"/stream/p/XYZ123?add=a,b#frag",
		"HTTPS://K.Example/Foo",
	}
	for _, in := range inputs {
		once := Canonicalize(in, base)
		twice := Canonicalize(once, base)
		assert.Equal(t, once, twice, "input=%q", in)
	}
}

func TestSplitComponents(t *testing.T) {
	path, query, fragment := SplitComponents("https://k.example/stream/p/ABC?add=u1,u2#frag1")
	assert.Equal(t, "/stream/p/ABC", path)
	assert.Equal(t, "add=u1,u2", query)
	assert.Equal(t, "frag1", fragment)
}
