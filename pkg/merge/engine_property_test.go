//go:build property

package merge_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kaisigil/gate/pkg/merge"
	"github.com/kaisigil/gate/pkg/payload"
)

// TestMergeIdempotentProperty verifies Merge(p, p) == p for arbitrary
// logical times and string tags.
func TestMergeIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merge is idempotent", prop.ForAll(
		func(pulse, beat, step int64, tag string) bool {
			p := payload.Payload{
				"pulse": float64(pulse), "beat": float64(beat), "stepIndex": float64(step),
				"tag": tag,
			}
			got := merge.Merge(p, p.Clone())
			return payload.Equal(p, got)
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestMergeCommutativeOnDistinctTimes verifies Merge(a,b) == Merge(b,a)
// whenever a and b carry distinct logical times.
func TestMergeCommutativeOnDistinctTimes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merge is commutative on distinct logical times", prop.ForAll(
		func(pa, pb int64, sigA, sigB string) bool {
			if pa == pb {
				return true // tie-break stability is covered separately
			}
			a := payload.Payload{"pulse": float64(pa), "kaiSignature": sigA}
			b := payload.Payload{"pulse": float64(pb), "kaiSignature": sigB}

			return payload.Equal(merge.Merge(a, b), merge.Merge(b, a))
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
