// Package payload defines the krystal payload: a loose, extensible JSON
// record. The recognised field list is open-ended — every field not named
// below is preserved verbatim in Extras and carried through merge and
// persistence untouched.
package payload

import (
	"encoding/json"
)

// Known canonical field names.
const (
	FieldPulse        = "pulse"
	FieldBeat         = "beat"
	FieldStepIndex    = "stepIndex"
	FieldChakraDay    = "chakraDay"
	FieldKaiSignature = "kaiSignature"
	FieldOriginURL    = "originUrl"
	FieldParentURL    = "parentUrl"
	FieldUserPhiKey   = "userPhiKey"
	FieldPhiKey       = "phiKey"
	FieldPhikey       = "phikey"
)

var richBonusFields = []string{
	FieldOriginURL, FieldParentURL, FieldKaiSignature,
	FieldUserPhiKey, FieldPhiKey, FieldPhikey,
}

var tupleBonusFields = []string{
	FieldPulse, FieldBeat, FieldStepIndex, FieldChakraDay,
}

// aliasMap lists every alias key and the canonical key it maps to. Mapping
// is additive: an alias is copied only when the canonical key is absent.
var aliasMap = map[string]string{
	"u": FieldPulse,
	"b": FieldBeat,
	"s": FieldStepIndex,
	"c": FieldChakraDay,

	"step_index":    FieldStepIndex,
	"chakra_day":    FieldChakraDay,
	"kai_signature": FieldKaiSignature,
	"origin_url":    FieldOriginURL,
	"parent_url":    FieldParentURL,

	"step": FieldStepIndex,
}

// Payload is a krystal's payload represented as a generic JSON object. It
// is intentionally just a map — the data model has no fixed schema, so a
// struct-with-extras split would require duplicating every unknown field
// into a side bag. Accessors below project the known fields out of the map
// on demand.
type Payload map[string]interface{}

// Clone returns a shallow copy of p. Nested values (slices, maps) are
// shared with the original — callers must not mutate them in place.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// NormalizeAliases returns a copy of raw with every alias key mapped onto
// its canonical field name, applied additively (an alias never overwrites
// an already-present canonical key) per §3 of the data model.
func NormalizeAliases(raw map[string]interface{}) Payload {
	out := make(Payload, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for alias, canonical := range aliasMap {
		v, ok := out[alias]
		if !ok {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}
	return out
}

// Get returns the raw value of field, and whether it is present.
func (p Payload) Get(field string) (interface{}, bool) {
	v, ok := p[field]
	return v, ok
}

// GetString returns field as a string, or "" if absent or not a string.
func (p Payload) GetString(field string) string {
	if v, ok := p[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ID returns the identity projection: userPhiKey, else phikey, else
// phiKey, else "".
func (p Payload) ID() string {
	for _, f := range []string{FieldUserPhiKey, FieldPhikey, FieldPhiKey} {
		if s := p.GetString(f); s != "" {
			return s
		}
	}
	return ""
}

// GetStringPtr returns field as *string: nil if absent or not a string,
// else a pointer to the value (including an empty string). Used for the
// entry-level projections in a state snapshot, which must distinguish
// "field present but empty" from "field absent" the way the registry's
// wire format does.
func (p Payload) GetStringPtr(field string) *string {
	v, ok := p[field]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// IsMissing reports whether v is a "missing" value for merge-fill
// purposes: absent (nil), an empty string, or an empty container.
func IsMissing(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// FieldMissing reports whether field is missing on p.
func (p Payload) FieldMissing(field string) bool {
	v, ok := p[field]
	if !ok {
		return true
	}
	return IsMissing(v)
}

// Richness computes the tie-break score of §4.5: +1 per non-missing field,
// +2 bonus for each rich identity/topology field present, +1 bonus for
// each present logical-time/categorical field. Extras (anything not in
// knownFields) count +1 each, same as any other non-missing field.
func Richness(p Payload) int {
	score := 0
	for k, v := range p {
		if IsMissing(v) {
			continue
		}
		score++
		score += bonusFor(k)
	}
	return score
}

func bonusFor(field string) int {
	for _, f := range richBonusFields {
		if f == field {
			return 2
		}
	}
	for _, f := range tupleBonusFields {
		if f == field {
			return 1
		}
	}
	return 0
}

// Equal reports whether two payloads are structurally identical,
// including extras — used by upsert to determine whether a merge changed
// the stored representation.
func Equal(a, b Payload) bool {
	ab, errA := json.Marshal(map[string]interface{}(a))
	bb, errB := json.Marshal(map[string]interface{}(b))
	if errA != nil || errB != nil {
		return false
	}
	var na, nb interface{}
	if err := json.Unmarshal(ab, &na); err != nil {
		return false
	}
	if err := json.Unmarshal(bb, &nb); err != nil {
		return false
	}
	return deepEqual(na, nb)
}

func deepEqual(a, b interface{}) bool {
	switch at := a.(type) {
	case map[string]interface{}:
		bt, ok := b.(map[string]interface{})
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, v := range at {
			bv, ok := bt[k]
			if !ok || !deepEqual(v, bv) {
				return false
			}
		}
		return true
	case []interface{}:
		bt, ok := b.([]interface{})
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !deepEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
