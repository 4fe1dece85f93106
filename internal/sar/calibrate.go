package sar

import (
	"math"

	"github.com/alpine-sar/glacier.report/internal/units"
)

// Calibrator converts raw digital-number amplitude to calibrated sigma-nought
// backscatter in decibels:
//
//	σ⁰(dB) = 10·log₁₀(DN²) − K
//
// K is a sensor calibration constant supplied by configuration or scene
// metadata, never derived from the data itself.
type Calibrator struct {
	// ConstantDB is the calibration constant K in decibels.
	ConstantDB float64
}

// Calibrate maps a raw amplitude grid to backscatter decibels. Zero or
// negative DN values have no decibel representation; those pixels are marked
// invalid in the output rather than producing -Inf or NaN, so the sentinel
// propagates through the validity mask instead of poisoning downstream
// statistics. Pixels already invalid in the input stay invalid.
//
// Returns a CalibrationError when the input contains no positive values.
func (c Calibrator) Calibrate(raw *Grid) (*Grid, error) {
	out := &Grid{
		Width:  raw.Width,
		Height: raw.Height,
		Data:   make([]float64, len(raw.Data)),
		Valid:  make([]bool, len(raw.Valid)),
	}

	positive := 0
	for i, dn := range raw.Data {
		if !raw.Valid[i] || dn <= 0 || math.IsNaN(dn) || math.IsInf(dn, 0) {
			continue
		}
		out.Data[i] = units.DecibelFromLinear(dn*dn) - c.ConstantDB
		out.Valid[i] = true
		positive++
	}

	if positive == 0 {
		return nil, &CalibrationError{Reason: "input contains no positive amplitude values"}
	}
	return out, nil
}
