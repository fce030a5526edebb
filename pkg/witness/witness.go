// Package witness derives ancestor chains from a krystal's "add" parameter
// and the soft-fill context they imply for the leaf payload. It does not
// touch the registry; callers combine its output with pkg/merge and the
// store themselves.
package witness

import (
	"net/url"
	"strings"

	"github.com/kaisigil/gate/pkg/payload"
	"github.com/kaisigil/gate/pkg/urlcanon"
)

// Context is the derived topology skeleton produced from a witness chain:
// originUrl from the chain root, parentUrl from the nearest ancestor.
type Context struct {
	Chain      []string
	OriginURL  string
	ParentURL  string
}

// Derive reads the "add" parameter from canonicalURL's query or fragment and
// returns the ordered ancestor chain plus the derived topology context, per
// §4.4. An absent or empty "add" yields a zero-value Context with an empty
// Chain.
func Derive(canonicalURL, baseOrigin string) Context {
	_, query, fragment := urlcanon.SplitComponents(canonicalURL)

	raw := firstAddValue(query)
	if raw == "" {
		raw = firstAddValue(fragment)
	}
	if raw == "" {
		return Context{}
	}

	var chain []string
	for _, piece := range strings.Split(raw, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		canon := urlcanon.Canonicalize(piece, baseOrigin)
		if canon == "" {
			continue
		}
		chain = append(chain, canon)
	}
	if len(chain) == 0 {
		return Context{}
	}

	return Context{
		Chain:     chain,
		OriginURL: chain[0],
		ParentURL: chain[len(chain)-1],
	}
}

func firstAddValue(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	if v := values["add"]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// MergeDerivedContext fills only missing topology fields (originUrl,
// parentUrl) on p from ctx; explicit fields already present on p are never
// overwritten. Returns a new Payload.
func MergeDerivedContext(p payload.Payload, ctx Context) payload.Payload {
	if ctx.OriginURL == "" && ctx.ParentURL == "" {
		return p
	}

	out := p.Clone()
	if ctx.OriginURL != "" && out.FieldMissing(payload.FieldOriginURL) {
		out[payload.FieldOriginURL] = ctx.OriginURL
	}
	if ctx.ParentURL != "" && out.FieldMissing(payload.FieldParentURL) {
		out[payload.FieldParentURL] = ctx.ParentURL
	}
	return out
}

// ChainEdge describes one position in a witness chain slated for edge
// synthesis: the URL to ensure exists in the registry, and the topology
// fields it should be soft-filled with if it must be freshly inserted.
//
// Per the open question in the design notes, intermediate chain entries
// inherit parentUrl from their predecessor only; only the leaf (the
// original hit, handled by the caller via MergeDerivedContext, not here)
// inherits originUrl. Chain entries here never receive originUrl — that
// would contradict "only the leaf inherits originUrl".
type ChainEdge struct {
	URL       string
	ParentURL string
}

// ChainEdges expands ctx.Chain into the synthesis order the merge engine
// walks: u1 (the root, no parent) through un (the nearest ancestor, parent
// is u(n-1)).
func ChainEdges(ctx Context) []ChainEdge {
	edges := make([]ChainEdge, 0, len(ctx.Chain))
	for i, u := range ctx.Chain {
		edge := ChainEdge{URL: u}
		if i > 0 {
			edge.ParentURL = ctx.Chain[i-1]
		}
		edges = append(edges, edge)
	}
	return edges
}
