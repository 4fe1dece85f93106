// Package timeseries accumulates one ice-area sample per calendar year and
// estimates a linear trend with ordinary least squares.
package timeseries

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alpine-sar/glacier.report/internal/monitoring"
	"github.com/alpine-sar/glacier.report/internal/sar"
)

// Sample is one year's contribution to the series.
type Sample struct {
	Year              int     `json:"year"`
	IceAreaKm2        float64 `json:"ice_area_km2"`
	MeanBackscatterDB float64 `json:"mean_backscatter_db"`
	ThresholdDB       float64 `json:"threshold_db"`
}

// Exclusion records a year whose source scene was rejected, with the reason.
// Excluded years are enumerated in the final result so trend conclusions are
// auditable; they are distinct from years that were simply never provided.
type Exclusion struct {
	Year   int    `json:"year"`
	Reason string `json:"reason"`
}

// Trend holds ordinary-least-squares fit diagnostics for one metric against
// year. Year is a continuous covariate, so gaps in the series are handled by
// the actual year values rather than sample indices.
type Trend struct {
	SlopePerYear float64 `json:"slope_per_year"`
	Intercept    float64 `json:"intercept"`
	RSquared     float64 `json:"r_squared"`
	PValue       float64 `json:"p_value"`
	StdErr       float64 `json:"std_err"`
}

// Result is the finalized, read-only analysis of a series.
type Result struct {
	Samples  []Sample    `json:"samples"`
	Excluded []Exclusion `json:"excluded"`

	// InsufficientData is true when fewer samples than the configured
	// minimum were available; the trends are nil in that case rather than a
	// degenerate fit.
	InsufficientData bool `json:"insufficient_data"`

	// AreaTrend regresses ice area (km²) against year.
	AreaTrend *Trend `json:"area_trend,omitempty"`

	// BackscatterTrend regresses mean backscatter (dB) against year.
	BackscatterTrend *Trend `json:"backscatter_trend,omitempty"`

	// AreaCV is the coefficient of variation (std/mean) of the yearly areas,
	// an independent stability indicator: a near-zero trend with low CV is
	// strong evidence of true stability, while a near-zero trend with high
	// CV is noisy and inconclusive.
	AreaCV float64 `json:"area_cv"`

	// TotalChangeKm2 and RelativeChangePct cover first to last observed year.
	TotalChangeKm2    float64 `json:"total_change_km2"`
	RelativeChangePct float64 `json:"relative_change_pct"`
}

// Builder assembles a series incrementally, one segmented scene per year.
type Builder struct {
	minSamples int
	percentile float64 // NaN until the first scene fixes it
	samples    map[int]Sample
	excluded   []Exclusion
}

// NewBuilder returns a Builder that requires at least minSamples yearly
// samples before a trend is computed. Values below 3 are raised to 3: a
// two-point regression is always a perfect and meaningless fit.
func NewBuilder(minSamples int) *Builder {
	if minSamples < 3 {
		minSamples = 3
	}
	return &Builder{
		minSamples: minSamples,
		percentile: math.NaN(),
		samples:    make(map[int]Sample),
	}
}

// Add contributes one segmented scene. Every scene in a series must have
// been segmented with the same ice percentile; mixing percentiles would make
// the year-over-year areas incomparable, so it is rejected here rather than
// silently producing a misleading trend. A second sample for an existing
// year replaces the earlier one and logs that it was superseded; samples
// are never averaged.
func (b *Builder) Add(sc *sar.SegmentedScene) error {
	if math.IsNaN(b.percentile) {
		b.percentile = sc.IcePercentile
	} else if sc.IcePercentile != b.percentile {
		return fmt.Errorf("scene %s segmented with percentile %.1f, series uses %.1f: thresholds must derive from one percentile",
			sc.AcquisitionDate.Format("2006-01-02"), sc.IcePercentile, b.percentile)
	}

	year := sc.AcquisitionDate.Year()
	if prev, ok := b.samples[year]; ok {
		monitoring.Logf("superseding sample for year %d: area %.3f km² replaced by %.3f km²",
			year, prev.IceAreaKm2, sc.IceAreaKm2)
	}
	b.samples[year] = Sample{
		Year:              year,
		IceAreaKm2:        sc.IceAreaKm2,
		MeanBackscatterDB: sc.MeanBackscatterDB,
		ThresholdDB:       sc.ThresholdDB,
	}
	return nil
}

// Exclude records a year that could not contribute a sample.
func (b *Builder) Exclude(year int, reason string) {
	b.excluded = append(b.excluded, Exclusion{Year: year, Reason: reason})
}

// Len returns the number of yearly samples accumulated so far.
func (b *Builder) Len() int { return len(b.samples) }

// Finalize computes the regression and returns the read-only result.
func (b *Builder) Finalize() *Result {
	res := &Result{
		Samples:  make([]Sample, 0, len(b.samples)),
		Excluded: append([]Exclusion(nil), b.excluded...),
	}
	for _, s := range b.samples {
		res.Samples = append(res.Samples, s)
	}
	sort.Slice(res.Samples, func(i, j int) bool { return res.Samples[i].Year < res.Samples[j].Year })

	n := len(res.Samples)
	res.AreaCV = math.NaN()
	if n == 0 {
		res.InsufficientData = true
		res.TotalChangeKm2 = math.NaN()
		res.RelativeChangePct = math.NaN()
		return res
	}

	areas := make([]float64, n)
	years := make([]float64, n)
	backscatter := make([]float64, n)
	for i, s := range res.Samples {
		years[i] = float64(s.Year)
		areas[i] = s.IceAreaKm2
		backscatter[i] = s.MeanBackscatterDB
	}

	res.TotalChangeKm2 = areas[n-1] - areas[0]
	if areas[0] > 0 {
		res.RelativeChangePct = 100 * res.TotalChangeKm2 / areas[0]
	} else {
		res.RelativeChangePct = math.NaN()
	}
	if mean := stat.Mean(areas, nil); mean != 0 && n > 1 {
		res.AreaCV = stat.StdDev(areas, nil) / mean
	}

	if n < b.minSamples {
		res.InsufficientData = true
		monitoring.Logf("time series has %d samples, need %d for a trend", n, b.minSamples)
		return res
	}

	res.AreaTrend = fitTrend(years, areas)
	res.BackscatterTrend = fitTrend(years, backscatter)
	return res
}

// fitTrend fits y = a + b*x by OLS, skipping NaN observations, and derives
// R², the standard error of the slope and a two-sided Student's-t p-value
// with n-2 degrees of freedom. A zero-variance y yields slope exactly 0 with
// R² and p reported as NaN instead of a division-by-zero error.
func fitTrend(x, y []float64) *Trend {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range y {
		if !math.IsNaN(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	n := len(ys)
	if n < 3 {
		return nil
	}

	// Checked by value equality, not variance: summing a repeated value like
	// 0.1 accumulates rounding, and a constant series must come out with a
	// slope of exactly 0, never 1e-17.
	constant := true
	for _, v := range ys[1:] {
		if v != ys[0] {
			constant = false
			break
		}
	}
	if constant {
		return &Trend{
			SlopePerYear: 0,
			Intercept:    ys[0],
			RSquared:     math.NaN(),
			PValue:       math.NaN(),
			StdErr:       0,
		}
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	// Residual variance and slope standard error for the t-test.
	xMean := stat.Mean(xs, nil)
	ssr, sxx := 0.0, 0.0
	for i := range xs {
		resid := ys[i] - (alpha + beta*xs[i])
		ssr += resid * resid
		dx := xs[i] - xMean
		sxx += dx * dx
	}

	trend := &Trend{SlopePerYear: beta, Intercept: alpha, RSquared: r2}
	if sxx == 0 {
		// All observations in one year; no slope information.
		trend.SlopePerYear = 0
		trend.RSquared = math.NaN()
		trend.PValue = math.NaN()
		return trend
	}

	se := math.Sqrt(ssr / float64(n-2) / sxx)
	trend.StdErr = se
	if se == 0 {
		// Perfect fit with a non-zero slope.
		trend.PValue = 0
		return trend
	}

	t := beta / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	trend.PValue = 2 * (1 - dist.CDF(math.Abs(t)))
	return trend
}
