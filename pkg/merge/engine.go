// Package merge implements deterministic conflict resolution between two
// krystal payloads: logical-time priority, richness tie-break, and
// missing-field fill. It is pure — it never touches the registry map
// directly, so it can be tested and reasoned about independently of
// storage concerns.
package merge

import (
	"github.com/kaisigil/gate/pkg/logicaltime"
	"github.com/kaisigil/gate/pkg/payload"
)

// tupleOf reads the logical-time tuple out of a payload.
func tupleOf(p payload.Payload) logicaltime.Tuple {
	pulse, _ := p.Get(payload.FieldPulse)
	beat, _ := p.Get(payload.FieldBeat)
	step, _ := p.Get(payload.FieldStepIndex)
	return logicaltime.FromFields(pulse, beat, step)
}

// Merge resolves a conflict between a previously-stored payload (prev) and
// an incoming one (inc), per §4.5:
//
//  1. Strictly greater logical time wins and becomes the base.
//  2. On a logical-time tie, the higher richness score wins.
//  3. On a full tie (time and richness), prev remains base — document
//     stability.
//  4. Every key present on the losing side fills in on the base only
//     where the base's value is missing.
func Merge(prev, inc payload.Payload) payload.Payload {
	prevT, incT := tupleOf(prev), tupleOf(inc)

	var base, other payload.Payload
	switch {
	case prevT.Less(incT):
		base, other = inc, prev
	case incT.Less(prevT):
		base, other = prev, inc
	default:
		// Logical-time tie: richness breaks it; full tie keeps prev.
		if payload.Richness(inc) > payload.Richness(prev) {
			base, other = inc, prev
		} else {
			base, other = prev, inc
		}
	}

	merged := base.Clone()
	for k, v := range other {
		if payload.IsMissing(v) {
			continue
		}
		if merged.FieldMissing(k) {
			merged[k] = v
		}
	}
	return merged
}
