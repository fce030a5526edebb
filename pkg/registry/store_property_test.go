//go:build property

package registry

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kaisigil/gate/pkg/payload"
)

// TestOrderedURLsStrictlyDescending verifies property 6 of the testable
// properties: the ordered list is strictly decreasing by logical-time
// tuple, with URL ascending on ties, for arbitrary registries.
func TestOrderedURLsStrictlyDescending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ordered urls respect the tuple-desc/url-asc ordering", prop.ForAll(
		func(pulses []int64) bool {
			reg := map[string]payload.Payload{}
			for i, p := range pulses {
				url := fmt.Sprintf("https://k.example/%03d", i)
				reg[url] = payload.Payload{"pulse": float64(p)}
			}
			ordered := orderedURLs(reg)
			for i := 1; i < len(ordered); i++ {
				ti, tj := tupleOf(reg[ordered[i-1]]), tupleOf(reg[ordered[i]])
				if ti.Less(tj) {
					return false
				}
				if ti.Equal(tj) && ordered[i-1] > ordered[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-50, 50)),
	))

	properties.TestingRun(t)
}
