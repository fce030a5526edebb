// Package logicaltime implements the three-component logical clock that
// orders krystals: (pulse, beat, stepIndex). No wall-clock time is ever
// consulted — ordering and identity are derived purely from these values.
package logicaltime

import "strconv"

// Tuple is the ordered (pulse, beat, stepIndex) logical timestamp.
type Tuple struct {
	Pulse     int64 `json:"pulse"`
	Beat      int64 `json:"beat"`
	StepIndex int64 `json:"stepIndex"`
}

// Compare returns -1, 0, or 1 as t orders before, equal to, or after other,
// comparing components lexicographically: pulse, then beat, then stepIndex.
func (t Tuple) Compare(other Tuple) int {
	if t.Pulse != other.Pulse {
		return cmp64(t.Pulse, other.Pulse)
	}
	if t.Beat != other.Beat {
		return cmp64(t.Beat, other.Beat)
	}
	return cmp64(t.StepIndex, other.StepIndex)
}

// Less reports whether t orders strictly before other.
func (t Tuple) Less(other Tuple) bool { return t.Compare(other) < 0 }

// Equal reports whether t and other carry the same logical time.
func (t Tuple) Equal(other Tuple) bool { return t.Compare(other) == 0 }

// Max returns the componentwise maximum of t and other — NOT a tuple
// comparison, used only to build the registry-wide "latest" projection.
func (t Tuple) Max(other Tuple) Tuple {
	return Tuple{
		Pulse:     max64(t.Pulse, other.Pulse),
		Beat:      max64(t.Beat, other.Beat),
		StepIndex: max64(t.StepIndex, other.StepIndex),
	}
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Coerce converts an arbitrary decoded-JSON value into an int64 logical-time
// component. The rules are total: every input produces a value, never an
// error.
//
//   - nil                    -> 0
//   - bool                   -> 0
//   - float64 NaN             -> 0
//   - float64 (finite)        -> truncated toward zero
//   - json.Number / int64     -> itself
//   - string                  -> parsed as an integer; unparseable -> 0
//   - anything else           -> 0
func Coerce(v interface{}) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		return 0
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		if t != t { // NaN
			return 0
		}
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil && f == f {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// FromFields builds a Tuple from raw decoded-JSON pulse/beat/stepIndex
// values, applying Coerce to each. Missing components should be passed as
// nil and coerce to 0.
func FromFields(pulse, beat, stepIndex interface{}) Tuple {
	return Tuple{
		Pulse:     Coerce(pulse),
		Beat:      Coerce(beat),
		StepIndex: Coerce(stepIndex),
	}
}
