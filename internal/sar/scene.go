package sar

import "time"

// Scene is one calibrated SAR acquisition: a backscatter raster in decibels
// with its acquisition date and the ground area covered by one pixel. Scenes
// compared within one analysis must share raster dimensions.
type Scene struct {
	Raster          *Grid
	AcquisitionDate time.Time
	PixelAreaM2     float64
}

// SegmentedScene is a Scene plus its derived ice classification. It is
// immutable once produced by the Segmenter and is consumed by the change
// detector and the time-series analyzer.
type SegmentedScene struct {
	Scene

	// IceMask is true where the pixel was classified as ice.
	IceMask *Mask

	// ThresholdDB is the absolute decibel cutoff derived for this scene.
	// It varies scene to scene with the brightness distribution.
	ThresholdDB float64

	// IcePercentile is the percentile the threshold was derived from. All
	// scenes contributing to one time series must share this value; the
	// series builder enforces it.
	IcePercentile float64

	// IceAreaKm2 is the classified ice area.
	IceAreaKm2 float64

	// MeanBackscatterDB is the mean raster value over the ice mask.
	MeanBackscatterDB float64
}
