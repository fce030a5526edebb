// Package extractor walks arbitrary decoded JSON trees looking for
// krystal references: strings that look like URLs or bare tokens, each of
// which may carry an embedded payload token in its path, query, or
// fragment.
package extractor

import (
	"net/url"
	"strings"

	"github.com/kaisigil/gate/pkg/payload"
	"github.com/kaisigil/gate/pkg/token"
	"github.com/kaisigil/gate/pkg/urlcanon"
)

// Hit is a single extracted (canonical_url, payload) pair.
type Hit struct {
	CanonicalURL string
	Payload      payload.Payload
}

// queryTokenKeys is the priority order §4.3 specifies for query/fragment
// token candidates.
var queryTokenKeys = []string{"p", "t", "root", "token"}

// ExtractAll walks v depth-first and returns every (canonical_url,
// payload) hit discoverable via path, query, or fragment tokens.
func ExtractAll(v interface{}, baseOrigin string) []Hit {
	var hits []Hit
	walk(v, baseOrigin, &hits)
	return hits
}

func walk(v interface{}, baseOrigin string, hits *[]Hit) {
	switch t := v.(type) {
	case string:
		if hit, ok := tryString(t, baseOrigin); ok {
			*hits = append(*hits, hit)
		}
	case []interface{}:
		for _, elem := range t {
			walk(elem, baseOrigin, hits)
		}
	case map[string]interface{}:
		for _, elem := range t {
			walk(elem, baseOrigin, hits)
		}
	default:
		// Non-string primitives (numbers, bools, nil) carry no references.
	}
}

func tryString(s, baseOrigin string) (Hit, bool) {
	if !looksLikeReference(s) {
		return Hit{}, false
	}

	canonical := urlcanon.Canonicalize(s, baseOrigin)
	if canonical == "" {
		return Hit{}, false
	}

	p, ok := DecodeCanonicalURL(canonical)
	if !ok {
		return Hit{}, false
	}
	return Hit{CanonicalURL: canonical, Payload: p}, true
}

// DecodeCanonicalURL tries every token candidate embedded in an
// already-canonicalised URL's path, query, or fragment, in the same
// priority order ExtractAll uses, and returns the first one that decodes.
// It is exported for witness-edge synthesis and explicit-parent-chain
// stitching, which need to resolve a bare canonical URL to its payload
// without re-walking a document.
func DecodeCanonicalURL(canonical string) (payload.Payload, bool) {
	path, query, fragment := urlcanon.SplitComponents(canonical)
	for _, candidate := range candidates(path, query, fragment) {
		if p, err := token.Decode(candidate); err == nil {
			return payload.NormalizeAliases(p), true
		}
	}
	return nil, false
}

var bareTokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

func looksLikeReference(s string) bool {
	if len(s) >= 16 && isAllOf(s, bareTokenChars) {
		return true
	}
	for _, marker := range []string{"/stream", "/s/", "/p~", "http"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isAllOf(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// candidates collects token candidates in priority order, de-duplicating
// (after URL-decoding) while preserving first-seen order.
func candidates(path, query, fragment string) []string {
	var out []string
	seen := map[string]bool{}

	add := func(c string) {
		decoded, err := url.QueryUnescape(c)
		if err != nil {
			decoded = c
		}
		if decoded == "" || seen[decoded] {
			return
		}
		seen[decoded] = true
		out = append(out, decoded)
	}

	if tok, ok := capturePathToken(path, "/stream/p/"); ok {
		add(tok)
	}
	if tok, ok := capturePathToken(path, "/p~"); ok {
		add(tok)
	}
	if tok, ok := capturePathToken(path, "/stream/p~"); ok {
		add(tok)
	}

	qv, _ := url.ParseQuery(query)
	for _, k := range queryTokenKeys {
		for _, v := range qv[k] {
			add(v)
		}
	}

	fv, _ := url.ParseQuery(fragment)
	for _, k := range queryTokenKeys {
		for _, v := range fv[k] {
			add(v)
		}
	}

	return out
}

// capturePathToken returns the path segment following prefix, if path has
// that prefix and nothing (no further "/") follows the captured token.
func capturePathToken(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
