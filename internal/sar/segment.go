package sar

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/alpine-sar/glacier.report/internal/monitoring"
	"github.com/alpine-sar/glacier.report/internal/units"
)

// Segmenter classifies pixels as ice / non-ice with a distribution-derived
// threshold: the configured percentile of the valid backscatter values.
// Radar-dark pixels (low backscatter) are the presumptively purest ice, so a
// pixel is ice when its value is at or below the threshold.
//
// The percentile, not an absolute decibel cutoff, is the tunable parameter.
// Absolute backscatter shifts scene to scene with moisture and incidence
// angle; ranking against each scene's own distribution keeps the relative
// size of the ice class comparable across years. Area comparisons are only
// meaningful when every scene in a series is segmented with the same
// percentile.
type Segmenter struct {
	// Percentile is the ice-class cutoff, exclusive bounds (0, 100).
	Percentile float64

	// MinValidPixels is the minimum usable pixel count below which
	// segmentation fails with an InsufficientDataError.
	MinValidPixels int

	// MinComponentPixels drops 4-connected ice components smaller than this
	// many pixels as noise rather than real ice or debris patches.
	MinComponentPixels int
}

// Segment classifies a despeckled scene and derives its scalar metrics.
// Post-processing applies a 3x3 morphological opening then closing and a
// minimum-component-area filter before areas are computed.
func (s Segmenter) Segment(scene Scene) (*SegmentedScene, error) {
	if s.Percentile <= 0 || s.Percentile >= 100 {
		return nil, fmt.Errorf("ice percentile must be in (0, 100), got %v", s.Percentile)
	}

	g := scene.Raster
	vals := g.ValidValues()
	if len(vals) < s.MinValidPixels {
		return nil, &InsufficientDataError{ValidPixels: len(vals), MinPixels: s.MinValidPixels}
	}

	sort.Float64s(vals)
	threshold := stat.Quantile(s.Percentile/100, stat.Empirical, vals, nil)

	mask := NewMask(g.Width, g.Height)
	for i, ok := range g.Valid {
		if ok && g.Data[i] <= threshold {
			mask.Bits[i] = true
		}
	}

	mask = Close(Open(mask))
	components := FilterMinArea(mask, s.MinComponentPixels)

	icePixels := mask.Count()
	meanDB := math.NaN()
	if icePixels > 0 {
		// Closing can fill a nodata hole inside an ice patch; the filled bit
		// counts toward area but a nodata pixel has no backscatter value, so
		// only valid pixels contribute to the mean.
		iceVals := make([]float64, 0, icePixels)
		for i, b := range mask.Bits {
			if b && g.Valid[i] {
				iceVals = append(iceVals, g.Data[i])
			}
		}
		if len(iceVals) > 0 {
			meanDB = stat.Mean(iceVals, nil)
		}
	}

	monitoring.Logf("segmented scene %s: threshold %.2f dB, %d ice pixels in %d components",
		scene.AcquisitionDate.Format("2006-01-02"), threshold, icePixels, components)

	return &SegmentedScene{
		Scene:             scene,
		IceMask:           mask,
		ThresholdDB:       threshold,
		IcePercentile:     s.Percentile,
		IceAreaKm2:        units.AreaKm2(icePixels, scene.PixelAreaM2),
		MeanBackscatterDB: meanDB,
	}, nil
}
