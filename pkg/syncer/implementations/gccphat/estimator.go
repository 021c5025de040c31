// Package gccphat estimates the offset between two signals using
// Generalized Cross-Correlation with Phase Transform (GCC-PHAT).
//
// The cross-power spectrum of the two signals is normalized to unit
// magnitude (the Phase Transform), which makes the peak of its inverse
// transform sharp and mostly insensitive to the loudness of either
// signal. It is used as an independent second opinion on the offset
// found by the correlation curve search.
package gccphat

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

type Estimator struct {
	// MaxLag limits the peak search to offsets within [-MaxLag, MaxLag];
	// zero means no limit.
	MaxLag int

	// MinFreq and MaxFreq are fractions of the sampling rate
	// (0..0.5); zero means no limit.
	MinFreq float64
	MaxFreq float64
}

func NewEstimator(maxLag int) *Estimator {
	return &Estimator{
		MaxLag: maxLag,
	}
}

// Estimate returns the offset of candidate against reference with the
// same sign convention as the correlation curves: a positive shift means
// that candidate has to be delayed to line up with reference.
func (e *Estimator) Estimate(
	ctx context.Context,
	reference []float64,
	candidate []float64,
) (_ret syncer.ShiftResult, _err error) {
	logger.Tracef(ctx, "Estimate: %d vs %d samples", len(reference), len(candidate))
	defer func() { logger.Tracef(ctx, "/Estimate: %#+v %v", _ret, _err) }()

	if len(reference) == 0 || len(candidate) == 0 {
		return syncer.ShiftResult{}, fmt.Errorf("both signals must be non-empty: %d and %d samples", len(reference), len(candidate))
	}

	// the next power of two of (n1 + n2 - 1) avoids circular wrap-around
	n := 1
	for n < len(reference)+len(candidate)-1 {
		n <<= 1
	}

	fref := centeredComplex(reference, n)
	fcomp := centeredComplex(candidate, n)
	if err := ctx.Err(); err != nil {
		return syncer.ShiftResult{}, err
	}

	shift, confidence, err := CrossCorrelate(fft.FFT(fref), fft.FFT(fcomp), e.MinFreq, e.MaxFreq, e.MaxLag)
	if err != nil {
		return syncer.ShiftResult{}, err
	}
	return syncer.ShiftResult{
		Shift:      shift,
		Confidence: confidence,
	}, nil
}

func centeredComplex(samples []float64, n int) []complex128 {
	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	result := make([]complex128, n)
	for i, v := range samples {
		result[i] = complex(v-mean, 0)
	}
	return result
}

// CrossCorrelate calculates the shift of 'fcomp' relative to 'fref', which
// are the spectra of equally long zero-padded signals.
//
// Returns (shift, confidence, error). A positive shift means 'comp' leads 'ref'.
func CrossCorrelate(
	fref, fcomp []complex128,
	minFreq, maxFreq float64,
	maxLag int,
) (float64, float64, error) {
	if len(fref) != len(fcomp) {
		return 0, 0, fmt.Errorf("fref and fcomp must have same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)
	if n == 0 {
		return 0, 0, fmt.Errorf("empty spectra")
	}

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n))
	}
	if maxFreq > 0 && maxFreq < 0.5 {
		binMax = int(maxFreq * float64(n))
	}

	// only whiten the bins that have energy above 60dB below the strongest one
	maxMag := 0.0
	for i := 0; i < n; i++ {
		maxMag = math.Max(maxMag, cmplx.Abs(fcomp[i]*cmplx.Conj(fref[i])))
	}
	threshold := maxMag * 0.001

	res := make([]complex128, n)
	activeBins := 0
	for i := 0; i < n; i++ {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		if idx < binMin || idx > binMax {
			continue
		}
		prod := fcomp[i] * cmplx.Conj(fref[i])
		mag := cmplx.Abs(prod)
		if mag > threshold && mag > 1e-12 {
			res[i] = prod / complex(mag, 0)
			activeBins++
		}
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	timeDomain := fft.IFFT(res)

	lagAt := func(i int) int {
		if i > n/2 {
			return i - n
		}
		return i
	}
	maxVal := -1.0
	maxIdx := 0
	for i := range n {
		if maxLag > 0 && abs(lagAt(i)) > maxLag {
			continue
		}
		if val := cmplx.Abs(timeDomain[i]); val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	// comp(t) = ref(t-shift) peaks at shift
	shift := float64(lagAt(maxIdx))

	// parabolic sub-sample interpolation
	prev := cmplx.Abs(timeDomain[(maxIdx-1+n)%n])
	next := cmplx.Abs(timeDomain[(maxIdx+1)%n])
	if denom := prev - 2*maxVal + next; math.Abs(denom) > 1e-12 {
		shift += (prev - next) / (2 * denom)
	}

	// a perfect match concentrates all the activeBins/n energy in one peak
	confidence := math.Min(1, maxVal*float64(n)/float64(activeBins))

	return -shift, confidence, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
