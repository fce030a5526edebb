// Package canonicaljson provides RFC 8785 (JSON Canonicalization Scheme)
// serialization used to derive the registry seal and the persisted
// snapshot format. Two values that are structurally equal always produce
// byte-identical canonical output, independent of map iteration order or
// struct field order.
package canonicaljson

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Marshal returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshalled with the standard encoder (so struct tags and
// custom MarshalJSON methods are respected), then transformed into
// canonical form: object keys sorted, numbers re-serialized per the
// ECMAScript Number::toString algorithm, and no insignificant whitespace.
func Marshal(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: pre-marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: transform failed: %w", err)
	}
	return canonical, nil
}

// MarshalString is Marshal returning a string.
func MarshalString(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
