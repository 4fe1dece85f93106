package sar

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DespeckleMethod identifies which speckle suppression filter to use.
type DespeckleMethod string

const (
	// MethodMedian applies a plain median filter over the window. Cheap,
	// order-preserving, and robust to outlier returns.
	MethodMedian DespeckleMethod = "median"

	// MethodAdaptiveLee applies a Lee filter: each pixel shrinks toward the
	// local window mean in proportion to the ratio of local variance to a
	// scene-wide noise variance estimate. Preserves edges better than the
	// median on gradual terrain.
	MethodAdaptiveLee DespeckleMethod = "adaptive_lee"
)

// String returns the string representation of the method.
func (m DespeckleMethod) String() string { return string(m) }

// IsValid returns true if the method is a known valid value.
func (m DespeckleMethod) IsValid() bool {
	switch m {
	case MethodMedian, MethodAdaptiveLee:
		return true
	default:
		return false
	}
}

// Despeckler suppresses multiplicative speckle noise with a local-statistics
// window filter. Filtering happens in decibel space, which treats the
// multiplicative noise as approximately additive; exact deconvolution is out
// of scope.
type Despeckler struct {
	method DespeckleMethod
	window int
}

// NewDespeckler validates the configuration and returns a ready filter.
// Window sizes must be odd (there is no well-defined center pixel otherwise)
// and at least 3; violations return an InvalidWindowError.
func NewDespeckler(method DespeckleMethod, window int) (*Despeckler, error) {
	if !method.IsValid() {
		return nil, &InvalidWindowError{Size: window, Reason: "unknown despeckle method " + string(method)}
	}
	if window < 3 {
		return nil, &InvalidWindowError{Size: window, Reason: "window must be at least 3"}
	}
	if window%2 == 0 {
		return nil, &InvalidWindowError{Size: window, Reason: "window must be odd"}
	}
	return &Despeckler{method: method, window: window}, nil
}

// Method returns the configured filter method.
func (d *Despeckler) Method() DespeckleMethod { return d.method }

// WindowSize returns the configured window size.
func (d *Despeckler) WindowSize() int { return d.window }

// Filter returns a despeckled copy of g with identical dimensions. Border
// pixels use reflected coordinates so the window never reads out of bounds
// and the border is never dropped. Invalid pixels stay invalid and never
// contribute to a neighbour's window.
func (d *Despeckler) Filter(g *Grid) *Grid {
	switch d.method {
	case MethodAdaptiveLee:
		return d.filterLee(g)
	default:
		return d.filterMedian(g)
	}
}

// collectWindow gathers the valid values in the window centred on (x, y)
// into buf and returns the filled slice.
func (d *Despeckler) collectWindow(g *Grid, x, y int, buf []float64) []float64 {
	half := d.window / 2
	buf = buf[:0]
	for dy := -half; dy <= half; dy++ {
		wy := reflectCoord(y+dy, g.Height)
		for dx := -half; dx <= half; dx++ {
			wx := reflectCoord(x+dx, g.Width)
			if g.IsValid(wx, wy) {
				buf = append(buf, g.At(wx, wy))
			}
		}
	}
	return buf
}

func (d *Despeckler) filterMedian(g *Grid) *Grid {
	out := g.Clone()
	buf := make([]float64, 0, d.window*d.window)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !g.IsValid(x, y) {
				continue
			}
			buf = d.collectWindow(g, x, y, buf)
			sort.Float64s(buf)
			out.Data[g.Index(x, y)] = median(buf)
		}
	}
	return out
}

func (d *Despeckler) filterLee(g *Grid) *Grid {
	out := g.Clone()

	// Noise variance estimate: scene-wide variance of valid pixels. With a
	// constant input this is zero, the weight collapses to zero and the
	// filter returns the local mean, i.e. the constant itself.
	noiseVar := 0.0
	if vals := g.ValidValues(); len(vals) > 1 {
		noiseVar = stat.Variance(vals, nil)
	}

	buf := make([]float64, 0, d.window*d.window)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !g.IsValid(x, y) {
				continue
			}
			buf = d.collectWindow(g, x, y, buf)
			mean := stat.Mean(buf, nil)
			localVar := 0.0
			if len(buf) > 1 {
				localVar = stat.Variance(buf, nil)
			}

			w := 0.0
			if denom := localVar + noiseVar; denom > 0 {
				w = localVar / denom
			}
			v := g.At(x, y)
			out.Data[g.Index(x, y)] = mean + w*(v-mean)
		}
	}
	return out
}

// median returns the middle value of an already sorted non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
