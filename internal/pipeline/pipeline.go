// Package pipeline wires the per-scene processing chain
// (calibrate → despeckle → segment) and runs independent scenes in parallel.
// Each scene produces an immutable SegmentedScene; failures in one scene
// never abort the others. The change detector and time-series builder join
// on the full set of outcomes.
package pipeline

import (
	"fmt"
	"math"
	"sync"

	"github.com/alpine-sar/glacier.report/internal/config"
	"github.com/alpine-sar/glacier.report/internal/monitoring"
	"github.com/alpine-sar/glacier.report/internal/sar"
	"github.com/alpine-sar/glacier.report/internal/timeseries"
)

// Params is the immutable parameter snapshot for one analysis run. It is
// derived once from a TuningConfig and passed by value into every component
// call, so settings from one run can never leak into a concurrently running
// analysis with different tuning.
type Params struct {
	CalibrationConstantDB   float64
	DespeckleMethod         sar.DespeckleMethod
	DespeckleWindowSize     int
	IcePercentile           float64
	MinValidPixels          int
	MinComponentPixels      int
	SignificanceThresholdDB float64
	ChangeMethod            sar.ChangeMethod
	MinSamplesForTrend      int
	Workers                 int
}

// ParamsFromTuning snapshots a loaded tuning config.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		CalibrationConstantDB:   cfg.GetCalibrationConstantDB(),
		DespeckleMethod:         sar.DespeckleMethod(cfg.GetDespeckleMethod()),
		DespeckleWindowSize:     cfg.GetDespeckleWindowSize(),
		IcePercentile:           cfg.GetIcePercentile(),
		MinValidPixels:          cfg.GetMinValidPixels(),
		MinComponentPixels:      cfg.GetMinComponentPixels(),
		SignificanceThresholdDB: cfg.GetSignificanceThresholdDB(),
		ChangeMethod:            sar.ChangeMethod(cfg.GetChangeMethod()),
		MinSamplesForTrend:      cfg.GetMinSamplesForTrend(),
		Workers:                 cfg.GetWorkers(),
	}
}

// SceneInput is one raw acquisition queued for processing.
type SceneInput struct {
	// ID identifies the scene in logs and the store; typically the source
	// granule name.
	ID string

	Scene sar.Scene // Raster holds raw digital numbers at this stage

	// CalibrationConstantDB optionally overrides the run-level K for this
	// scene (per-scene calibration metadata).
	CalibrationConstantDB *float64
}

// SceneOutcome is the result of one scene's pipeline: either a segmented
// scene or the data-quality error that excluded it.
type SceneOutcome struct {
	Input     SceneInput
	Segmented *sar.SegmentedScene
	Err       error
}

// ProcessScene runs one scene through sanity checks, calibration,
// despeckling and segmentation. Data-quality failures come back as the
// typed errors from the sar package.
func ProcessScene(p Params, d *sar.Despeckler, in SceneInput) (*sar.SegmentedScene, error) {
	if err := sanityCheck(in.Scene.Raster); err != nil {
		return nil, err
	}

	k := p.CalibrationConstantDB
	if in.CalibrationConstantDB != nil {
		k = *in.CalibrationConstantDB
	}
	calibrated, err := sar.Calibrator{ConstantDB: k}.Calibrate(in.Scene.Raster)
	if err != nil {
		return nil, err
	}

	despeckled := d.Filter(calibrated)

	seg := sar.Segmenter{
		Percentile:         p.IcePercentile,
		MinValidPixels:     p.MinValidPixels,
		MinComponentPixels: p.MinComponentPixels,
	}
	return seg.Segment(sar.Scene{
		Raster:          despeckled,
		AcquisitionDate: in.Scene.AcquisitionDate,
		PixelAreaM2:     in.Scene.PixelAreaM2,
	})
}

// Run processes all scenes with a bounded worker pool and returns one
// outcome per input, in input order. Configuration errors (an invalid filter
// window) are caller bugs and fail the whole run; per-scene data-quality
// errors only mark that scene's outcome.
//
// All scenes must share raster dimensions: a shape mismatch against the
// first scene is a hard error, never a silent crop.
func Run(p Params, scenes []SceneInput) ([]SceneOutcome, error) {
	d, err := sar.NewDespeckler(p.DespeckleMethod, p.DespeckleWindowSize)
	if err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, nil
	}

	// Shape reference is the first scene with a raster at all; scenes without
	// one are left for sanityCheck to exclude.
	var ref *sar.Grid
	for _, in := range scenes {
		if in.Scene.Raster != nil {
			ref = in.Scene.Raster
			break
		}
	}
	for _, in := range scenes {
		g := in.Scene.Raster
		if g == nil {
			continue
		}
		if !ref.SameShape(g) {
			return nil, &sar.DimensionMismatchError{
				AWidth: ref.Width, AHeight: ref.Height,
				BWidth: g.Width, BHeight: g.Height,
			}
		}
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(scenes) {
		workers = len(scenes)
	}

	outcomes := make([]SceneOutcome, len(scenes))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				in := scenes[i]
				seg, err := ProcessScene(p, d, in)
				if err != nil {
					monitoring.Logf("scene %s excluded: %v", in.ID, err)
				}
				outcomes[i] = SceneOutcome{Input: in, Segmented: seg, Err: err}
			}
		}()
	}
	for i := range scenes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes, nil
}

// BuildSeries folds segmented outcomes into a finalized time series.
// Excluded scenes are recorded by year with their failure reason so the
// final report can enumerate them.
func BuildSeries(p Params, outcomes []SceneOutcome) (*timeseries.Result, error) {
	b := timeseries.NewBuilder(p.MinSamplesForTrend)
	for _, o := range outcomes {
		if o.Err != nil {
			b.Exclude(o.Input.Scene.AcquisitionDate.Year(), o.Err.Error())
			continue
		}
		if err := b.Add(o.Segmented); err != nil {
			return nil, fmt.Errorf("building series: %w", err)
		}
	}
	return b.Finalize(), nil
}

// sanityCheck rejects rasters that cannot be a real acquisition. Failures
// are CorruptSceneErrors, handled by exclusion rather than aborting the run.
func sanityCheck(g *sar.Grid) error {
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return &sar.CorruptSceneError{Reason: "empty raster"}
	}
	nonZero := 0
	finite := 0
	valid := 0
	for i, ok := range g.Valid {
		if !ok {
			continue
		}
		valid++
		v := g.Data[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite++
		if v != 0 {
			nonZero++
		}
	}
	if valid == 0 {
		return &sar.CorruptSceneError{Reason: "no valid pixels"}
	}
	if nonZero == 0 {
		return &sar.CorruptSceneError{Reason: "raster is all zero"}
	}
	if float64(finite) < 0.5*float64(valid) {
		return &sar.CorruptSceneError{Reason: "more than half of valid pixels are NaN or Inf"}
	}
	return nil
}
