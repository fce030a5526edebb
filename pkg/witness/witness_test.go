package witness

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaisigil/gate/pkg/payload"
	"github.com/kaisigil/gate/pkg/urlcanon"
)

const base = "https://k.example"

func escape(s string) string {
	return url.QueryEscape(s)
}

func TestDeriveNoAddParam(t *testing.T) {
	ctx := Derive(base+"/stream/p/LEAF1234LEAF1234", base)
	assert.Empty(t, ctx.Chain)
	assert.Empty(t, ctx.OriginURL)
	assert.Empty(t, ctx.ParentURL)
}

func TestDeriveSingleAncestor(t *testing.T) {
	canon := urlcanon.Canonicalize(base+"/stream/p/LEAF1234LEAF1234?add=/stream/p/ROOT1234ROOT1234", base)
	ctx := Derive(canon, base)
	require.Len(t, ctx.Chain, 1)
	assert.Equal(t, ctx.Chain[0], ctx.OriginURL)
	assert.Equal(t, ctx.Chain[0], ctx.ParentURL)
}

func TestDeriveMultiAncestorChain(t *testing.T) {
	add := "/stream/p/ROOTROOTROOTROOT,/stream/p/MIDDMIDDMIDDMIDD"
	canon := urlcanon.Canonicalize(base+"/stream/p/LEAFLEAFLEAFLEAF?add="+escape(add), base)

	ctx := Derive(canon, base)
	require.Len(t, ctx.Chain, 2)
	assert.Equal(t, base+"/stream/p/ROOTROOTROOTROOT", ctx.OriginURL)
	assert.Equal(t, base+"/stream/p/MIDDMIDDMIDDMIDD", ctx.ParentURL)
}

func TestDeriveFromFragment(t *testing.T) {
	add := "/stream/p/ROOTROOTROOTROOT"
	canon := urlcanon.Canonicalize(base+"/stream/p/LEAFLEAFLEAFLEAF#add="+escape(add), base)

	ctx := Derive(canon, base)
	require.Len(t, ctx.Chain, 1)
	assert.Equal(t, base+"/stream/p/ROOTROOTROOTROOT", ctx.OriginURL)
}

func TestMergeDerivedContextFillsMissingOnly(t *testing.T) {
	ctx := Context{OriginURL: "https://k.example/o", ParentURL: "https://k.example/p"}

	p := payload.Payload{"parentUrl": "https://k.example/explicit"}
	got := MergeDerivedContext(p, ctx)

	assert.Equal(t, "https://k.example/o", got["originUrl"])
	assert.Equal(t, "https://k.example/explicit", got["parentUrl"])
}

func TestMergeDerivedContextNoopOnEmptyContext(t *testing.T) {
	p := payload.Payload{"pulse": float64(1)}
	got := MergeDerivedContext(p, Context{})
	assert.Equal(t, p, got)
}

func TestChainEdgesOnlyLeadingEdgeHasNoParent(t *testing.T) {
	ctx := Context{Chain: []string{"u1", "u2", "u3"}}
	edges := ChainEdges(ctx)

	require.Len(t, edges, 3)
	assert.Equal(t, ChainEdge{URL: "u1"}, edges[0])
	assert.Equal(t, ChainEdge{URL: "u2", ParentURL: "u1"}, edges[1])
	assert.Equal(t, ChainEdge{URL: "u3", ParentURL: "u2"}, edges[2])
}

func TestChainEdgesEmptyChainYieldsNoEdges(t *testing.T) {
	assert.Empty(t, ChainEdges(Context{}))
}
