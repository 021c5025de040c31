package syncer

import (
	"math"
)

// Shift returns a copy of candidate moved by offset.
func Shift(candidate []float64, offset int) []float64 {
	if offset < 0 {
		if -offset >= len(candidate) {
			return []float64{}
		}
		return append([]float64{}, candidate[-offset:]...)
	}
	result := make([]float64, offset+len(candidate))
	copy(result[offset:], candidate)
	return result
}

// Overlap returns reference and the shifted candidate truncated to
// their common length.
func Overlap(reference []float64, candidate []float64, offset int) ([]float64, []float64) {
	shifted := Shift(candidate, offset)
	n := min(len(reference), len(shifted))
	return reference[:n], shifted[:n]
}

// Segment describes the shifted candidate within the overlap without
// materializing it: Lead zeros followed by Tail.
type Segment struct {
	Length int
	Lead   int
	Tail   []float64
}

// SegmentAt computes the overlap of reference and candidate at offset.
func SegmentAt(referenceLength int, candidate []float64, offset int) Segment {
	if offset < 0 {
		start := min(-offset, len(candidate))
		n := min(referenceLength, len(candidate)-start)
		return Segment{
			Length: n,
			Tail:   candidate[start : start+n],
		}
	}
	n := min(referenceLength, offset+len(candidate))
	lead := min(offset, n)
	return Segment{
		Length: n,
		Lead:   lead,
		Tail:   candidate[:n-lead],
	}
}

// Pearson returns the Pearson correlation coefficient of x and y, which
// must be of the same length. It is NaN if either is constant.
func Pearson(x, y []float64) float64 {
	return pearson(x, 0, y)
}

// PearsonAt correlates reference with candidate shifted by offset,
// without copying either of them. ok is false if there is no overlap.
func PearsonAt(reference []float64, candidate []float64, offset int) (coef float64, ok bool) {
	seg := SegmentAt(len(reference), candidate, offset)
	if seg.Length <= 0 {
		return math.NaN(), false
	}
	return pearson(reference[:seg.Length], seg.Lead, seg.Tail), true
}

// pearson correlates x with y = lead zeros followed by tail.
func pearson(x []float64, lead int, tail []float64) float64 {
	n := len(x)
	if n == 0 || n != lead+len(tail) {
		return math.NaN()
	}
	if isConstant(x) || (isConstant(tail) && (lead == 0 || len(tail) == 0 || tail[0] == 0)) {
		return math.NaN()
	}

	var sumX, sumY float64
	for _, v := range x {
		sumX += v
	}
	for _, v := range tail {
		sumY += v
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < lead; i++ {
		dx := x[i] - meanX
		sxy -= dx * meanY
		sxx += dx * dx
	}
	syy = float64(lead) * meanY * meanY
	for i, v := range tail {
		dx := x[lead+i] - meanX
		dy := v - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return clampCoefficient(sxy / math.Sqrt(sxx*syy))
}

func isConstant(values []float64) bool {
	for _, v := range values[min(1, len(values)):] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func clampCoefficient(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
