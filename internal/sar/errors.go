package sar

import "fmt"

// The error kinds below split into two propagation classes. Data-quality
// errors (CalibrationError, InsufficientDataError, CorruptSceneError) are
// caught at the per-scene pipeline boundary and exclude that scene from
// multi-scene aggregates. Contract violations (InvalidWindowError,
// DimensionMismatchError) indicate a configuration or usage bug and always
// propagate to the caller.

// CalibrationError reports degenerate raw input: no positive digital-number
// values to calibrate.
type CalibrationError struct {
	Reason string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration failed: %s", e.Reason)
}

// InvalidWindowError reports a malformed filter window configuration.
type InvalidWindowError struct {
	Size   int
	Reason string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid filter window %d: %s", e.Size, e.Reason)
}

// InsufficientDataError reports too few valid pixels to segment
// meaningfully.
type InsufficientDataError struct {
	ValidPixels int
	MinPixels   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d valid pixels, need at least %d", e.ValidPixels, e.MinPixels)
}

// DimensionMismatchError reports an attempt to compare grids of different
// shapes. Mismatched scenes are a hard error, never silently cropped.
type DimensionMismatchError struct {
	AWidth, AHeight int
	BWidth, BHeight int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %dx%d vs %dx%d",
		e.AWidth, e.AHeight, e.BWidth, e.BHeight)
}

// CorruptSceneError reports a source scene that failed sanity checks and
// must be excluded rather than processed.
type CorruptSceneError struct {
	Reason string
}

func (e *CorruptSceneError) Error() string {
	return fmt.Sprintf("corrupt scene: %s", e.Reason)
}
