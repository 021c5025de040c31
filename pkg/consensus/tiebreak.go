package consensus

import (
	"fmt"
	"strings"
)

// TieBreakPolicy decides which offset wins when several share the
// maximum coefficient.
type TieBreakPolicy int

const (
	// TieBreakEarliestOffset picks the smallest offset value.
	TieBreakEarliestOffset TieBreakPolicy = iota
	// TieBreakFirstInGrid picks the offset tested first.
	TieBreakFirstInGrid
	// TieBreakClosestToZero picks the offset of the smallest magnitude,
	// the earliest of them if there are two.
	TieBreakClosestToZero
	EndOfTieBreakPolicy
)

func (p TieBreakPolicy) String() string {
	switch p {
	case TieBreakEarliestOffset:
		return "earliest"
	case TieBreakFirstInGrid:
		return "first"
	case TieBreakClosestToZero:
		return "closest_to_zero"
	default:
		return fmt.Sprintf("unknown_policy_%d", int(p))
	}
}

func ParseTieBreakPolicy(s string) (TieBreakPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p := TieBreakPolicy(0); p < EndOfTieBreakPolicy; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown tie-break policy '%s'", s)
}

// prefer reports whether offset a should win over offset b at equal
// coefficients, given that b was seen before a.
func (p TieBreakPolicy) prefer(a, b int) bool {
	switch p {
	case TieBreakFirstInGrid:
		return false
	case TieBreakClosestToZero:
		absA, absB := abs(a), abs(b)
		if absA != absB {
			return absA < absB
		}
		return a < b
	default:
		return a < b
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
