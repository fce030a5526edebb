// Package urlcanon rewrites the many surface forms a krystal reference can
// take — bare tokens, relative paths, short "~" routes — into one
// canonical absolute URL used as the registry key.
package urlcanon

import (
	"net/url"
	"regexp"
	"strings"
)

var bareTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}$`)

var shortRoutePattern = regexp.MustCompile(`^(?:/stream)?/p~([^/]+)$`)

// Canonicalize applies the canonicalisation rules of §4.1 to raw, resolving
// relative references against baseOrigin. It returns "" if raw is empty
// after trimming or cannot be made sense of.
func Canonicalize(raw, baseOrigin string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if bareTokenPattern.MatchString(trimmed) {
		return strings.TrimRight(baseOrigin, "/") + "/stream/p/" + trimmed
	}

	base, err := url.Parse(baseOrigin)
	if err != nil {
		return ""
	}

	ref, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(resolved.Host)

	if m := shortRoutePattern.FindStringSubmatch(resolved.Path); m != nil {
		resolved.Path = "/stream/p/" + url.PathEscape(m[1])
	}

	return resolved.String()
}

// SplitComponents returns (path, query, fragment) for a canonical URL,
// used by the extractor and witness derivation to read token candidates
// out of the query and fragment without re-canonicalising.
func SplitComponents(canonical string) (path, query, fragment string) {
	u, err := url.Parse(canonical)
	if err != nil {
		return "", "", ""
	}
	return u.Path, u.RawQuery, u.Fragment
}
