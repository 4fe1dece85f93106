package sar

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/alpine-sar/glacier.report/internal/units"
)

// ChangeMethod identifies how the per-pixel change map is computed.
type ChangeMethod string

const (
	// ChangeDifference takes the plain decibel difference B − A.
	ChangeDifference ChangeMethod = "difference"

	// ChangeRatio computes 10·log₁₀(B/A) in the linear domain. With inputs
	// already in decibels this is numerically equivalent to the difference
	// method; it exists for consumers that expect a ratio map.
	ChangeRatio ChangeMethod = "ratio"
)

// String returns the string representation of the method.
func (m ChangeMethod) String() string { return string(m) }

// IsValid returns true if the method is a known valid value.
func (m ChangeMethod) IsValid() bool {
	switch m {
	case ChangeDifference, ChangeRatio:
		return true
	default:
		return false
	}
}

// ChangeResult is the outcome of comparing two segmented scenes, before (A)
// against after (B). It holds no references back to the inputs beyond the
// comparison call.
type ChangeResult struct {
	// DifferenceDB holds B − A per pixel, valid only where both inputs are.
	DifferenceDB *Grid

	// DecreaseMask and IncreaseMask flag pixels whose |difference| exceeds
	// the significance threshold in each direction.
	DecreaseMask *Mask
	IncreaseMask *Mask

	// ValidPixels is the joint-valid pixel count all percentages are based
	// on. Masked-out pixels never dilute the percentages.
	ValidPixels int

	PercentAreaDecreased float64
	PercentAreaIncreased float64

	// MeanChangeDB is the arithmetic mean of the signed differences.
	MeanChangeDB float64
	StdChangeDB  float64

	// MaxDecreaseDB and MaxIncreaseDB are the extreme signed differences.
	MaxDecreaseDB float64
	MaxIncreaseDB float64
}

// ChangeDetector compares two segmented scenes of identical dimensions.
type ChangeDetector struct {
	// Method selects difference or ratio computation.
	Method ChangeMethod

	// SignificanceDB is the minimum |difference| for a pixel to count as
	// changed.
	SignificanceDB float64
}

// Compare produces a ChangeResult for before → after. Mismatched raster
// dimensions are a caller contract violation and return a
// DimensionMismatchError.
func (cd ChangeDetector) Compare(before, after *SegmentedScene) (*ChangeResult, error) {
	a, b := before.Raster, after.Raster
	if !a.SameShape(b) {
		return nil, &DimensionMismatchError{
			AWidth: a.Width, AHeight: a.Height,
			BWidth: b.Width, BHeight: b.Height,
		}
	}

	diff := &Grid{
		Width:  a.Width,
		Height: a.Height,
		Data:   make([]float64, len(a.Data)),
		Valid:  make([]bool, len(a.Data)),
	}
	decrease := NewMask(a.Width, a.Height)
	increase := NewMask(a.Width, a.Height)

	diffs := make([]float64, 0, len(a.Data))
	decreased, increased := 0, 0
	maxDec, maxInc := math.Inf(1), math.Inf(-1)

	for i := range a.Data {
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		var d float64
		switch cd.Method {
		case ChangeRatio:
			d = units.DecibelFromLinear(units.LinearFromDecibel(b.Data[i]) / units.LinearFromDecibel(a.Data[i]))
		default:
			d = b.Data[i] - a.Data[i]
		}
		diff.Data[i] = d
		diff.Valid[i] = true
		diffs = append(diffs, d)

		if d < maxDec {
			maxDec = d
		}
		if d > maxInc {
			maxInc = d
		}
		if d <= -cd.SignificanceDB {
			decrease.Bits[i] = true
			decreased++
		} else if d >= cd.SignificanceDB {
			increase.Bits[i] = true
			increased++
		}
	}

	res := &ChangeResult{
		DifferenceDB: diff,
		DecreaseMask: decrease,
		IncreaseMask: increase,
		ValidPixels:  len(diffs),
	}
	if len(diffs) == 0 {
		res.MeanChangeDB = math.NaN()
		res.StdChangeDB = math.NaN()
		res.MaxDecreaseDB = math.NaN()
		res.MaxIncreaseDB = math.NaN()
		return res, nil
	}

	res.PercentAreaDecreased = 100 * float64(decreased) / float64(len(diffs))
	res.PercentAreaIncreased = 100 * float64(increased) / float64(len(diffs))
	res.MeanChangeDB = stat.Mean(diffs, nil)
	if len(diffs) > 1 {
		res.StdChangeDB = stat.StdDev(diffs, nil)
	}
	res.MaxDecreaseDB = maxDec
	res.MaxIncreaseDB = maxInc
	return res, nil
}
