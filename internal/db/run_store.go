package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alpine-sar/glacier.report/internal/sar"
	"github.com/alpine-sar/glacier.report/internal/timeseries"
)

// AnalysisRun is one complete analysis session with its parameter snapshot,
// persisted for reproducibility and auditing.
type AnalysisRun struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Status      string          `json:"status"`
	Params      json.RawMessage `json:"params"`
	Error       string          `json:"error,omitempty"`
}

// SceneMetric is one scene's scalar segmentation output within a run.
type SceneMetric struct {
	RunID             string    `json:"run_id"`
	SceneID           string    `json:"scene_id"`
	AcquisitionDate   time.Time `json:"acquisition_date"`
	Year              int       `json:"year"`
	ThresholdDB       float64   `json:"threshold_db"`
	IceAreaKm2        float64   `json:"ice_area_km2"`
	MeanBackscatterDB float64   `json:"mean_backscatter_db"`
	ValidPixels       int       `json:"valid_pixels"`
	IcePixels         int       `json:"ice_pixels"`
}

// ChangeSummary is the scalar outcome of one pairwise comparison.
type ChangeSummary struct {
	RunID                string  `json:"run_id"`
	BeforeSceneID        string  `json:"before_scene_id"`
	AfterSceneID         string  `json:"after_scene_id"`
	Method               string  `json:"method"`
	ValidPixels          int     `json:"valid_pixels"`
	PercentAreaDecreased float64 `json:"percent_area_decreased"`
	PercentAreaIncreased float64 `json:"percent_area_increased"`
	MeanChangeDB         float64 `json:"mean_change_db"`
	StdChangeDB          float64 `json:"std_change_db"`
	MaxDecreaseDB        float64 `json:"max_decrease_db"`
	MaxIncreaseDB        float64 `json:"max_increase_db"`
}

// RunStore provides persistence for analysis runs and their results.
type RunStore struct {
	db *DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// BeginRun records a new run with its parameter snapshot and returns the
// generated run ID.
func (s *RunStore) BeginRun(params interface{}) (string, error) {
	blob, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshalling run params: %w", err)
	}
	runID := uuid.NewString()
	err = retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO analysis_runs (run_id, started_at, status, params_json) VALUES (?, ?, 'running', ?)`,
			runID, time.Now().UTC().Format(time.RFC3339), string(blob),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return runID, nil
}

// CompleteRun marks a run finished, with an optional error message for
// failed runs.
func (s *RunStore) CompleteRun(runID string, runErr error) error {
	status := "complete"
	msg := ""
	if runErr != nil {
		status = "failed"
		msg = runErr.Error()
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`UPDATE analysis_runs SET status = ?, completed_at = ?, error = ? WHERE run_id = ?`,
			status, time.Now().UTC().Format(time.RFC3339), nullStr(msg), runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// InsertSceneMetric records one contributed scene's scalars.
func (s *RunStore) InsertSceneMetric(m SceneMetric) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO scene_metrics (
				run_id, scene_id, acquisition_date, year, threshold_db,
				ice_area_km2, mean_backscatter_db, valid_pixels, ice_pixels
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.RunID, m.SceneID, m.AcquisitionDate.UTC().Format("2006-01-02"), m.Year,
			m.ThresholdDB, m.IceAreaKm2, nullFloat(m.MeanBackscatterDB),
			m.ValidPixels, m.IcePixels,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting scene metric %s: %w", m.SceneID, err)
	}
	return nil
}

// SceneMetricFromSegmented builds a SceneMetric row from a segmented scene.
func SceneMetricFromSegmented(runID, sceneID string, sc *sar.SegmentedScene) SceneMetric {
	return SceneMetric{
		RunID:             runID,
		SceneID:           sceneID,
		AcquisitionDate:   sc.AcquisitionDate,
		Year:              sc.AcquisitionDate.Year(),
		ThresholdDB:       sc.ThresholdDB,
		IceAreaKm2:        sc.IceAreaKm2,
		MeanBackscatterDB: sc.MeanBackscatterDB,
		ValidPixels:       sc.Raster.CountValid(),
		IcePixels:         sc.IceMask.Count(),
	}
}

// InsertExcludedScene records a scene rejected by the per-scene pipeline.
func (s *RunStore) InsertExcludedScene(runID, sceneID string, year int, reason string) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO excluded_scenes (run_id, scene_id, year, reason) VALUES (?, ?, ?, ?)`,
			runID, sceneID, year, reason,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting exclusion for %s: %w", sceneID, err)
	}
	return nil
}

// InsertChangeSummary records the scalars of a pairwise comparison; the
// masks themselves stay with the caller.
func (s *RunStore) InsertChangeSummary(c ChangeSummary) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO change_summaries (
				run_id, before_scene_id, after_scene_id, method, valid_pixels,
				percent_area_decreased, percent_area_increased,
				mean_change_db, std_change_db, max_decrease_db, max_increase_db
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.RunID, c.BeforeSceneID, c.AfterSceneID, c.Method, c.ValidPixels,
			c.PercentAreaDecreased, c.PercentAreaIncreased,
			nullFloat(c.MeanChangeDB), nullFloat(c.StdChangeDB),
			nullFloat(c.MaxDecreaseDB), nullFloat(c.MaxIncreaseDB),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting change summary %s -> %s: %w", c.BeforeSceneID, c.AfterSceneID, err)
	}
	return nil
}

// InsertTrend records the finalized time-series result for a run.
func (s *RunStore) InsertTrend(runID string, r *timeseries.Result) error {
	var areaSlope, areaR2, areaP, areaSE interface{}
	if r.AreaTrend != nil {
		areaSlope = nullFloat(r.AreaTrend.SlopePerYear)
		areaR2 = nullFloat(r.AreaTrend.RSquared)
		areaP = nullFloat(r.AreaTrend.PValue)
		areaSE = nullFloat(r.AreaTrend.StdErr)
	}
	var bsSlope, bsR2, bsP interface{}
	if r.BackscatterTrend != nil {
		bsSlope = nullFloat(r.BackscatterTrend.SlopePerYear)
		bsR2 = nullFloat(r.BackscatterTrend.RSquared)
		bsP = nullFloat(r.BackscatterTrend.PValue)
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO trend_results (
				run_id, insufficient_data, samples,
				area_slope_km2, area_r_squared, area_p_value, area_std_err,
				bs_slope_db, bs_r_squared, bs_p_value,
				area_cv, total_change_km2, relative_change_pct
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, boolToInt(r.InsufficientData), len(r.Samples),
			areaSlope, areaR2, areaP, areaSE,
			bsSlope, bsR2, bsP,
			nullFloat(r.AreaCV), nullFloat(r.TotalChangeKm2), nullFloat(r.RelativeChangePct),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting trend for run %s: %w", runID, err)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *RunStore) GetRun(runID string) (*AnalysisRun, error) {
	row := s.db.QueryRow(
		`SELECT run_id, started_at, completed_at, status, params_json, error FROM analysis_runs WHERE run_id = ?`,
		runID,
	)
	var r AnalysisRun
	var started string
	var completed, errMsg sql.NullString
	var params string
	if err := row.Scan(&r.RunID, &started, &completed, &r.Status, &params, &errMsg); err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", runID, err)
	}
	t, err := time.Parse(time.RFC3339, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at for run %s: %w", runID, err)
	}
	r.StartedAt = t
	if completed.Valid {
		ct, err := time.Parse(time.RFC3339, completed.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at for run %s: %w", runID, err)
		}
		r.CompletedAt = &ct
	}
	r.Params = json.RawMessage(params)
	r.Error = errMsg.String
	return &r, nil
}

// ListSceneMetrics returns a run's scene rows ordered by acquisition date.
func (s *RunStore) ListSceneMetrics(runID string) ([]SceneMetric, error) {
	rows, err := s.db.Query(`
		SELECT run_id, scene_id, acquisition_date, year, threshold_db,
		       ice_area_km2, mean_backscatter_db, valid_pixels, ice_pixels
		FROM scene_metrics WHERE run_id = ? ORDER BY acquisition_date`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing scene metrics for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []SceneMetric
	for rows.Next() {
		var m SceneMetric
		var date string
		var meanBS sql.NullFloat64
		if err := rows.Scan(&m.RunID, &m.SceneID, &date, &m.Year, &m.ThresholdDB,
			&m.IceAreaKm2, &meanBS, &m.ValidPixels, &m.IcePixels); err != nil {
			return nil, fmt.Errorf("scanning scene metric: %w", err)
		}
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parsing acquisition date %q: %w", date, err)
		}
		m.AcquisitionDate = t
		if meanBS.Valid {
			m.MeanBackscatterDB = meanBS.Float64
		} else {
			m.MeanBackscatterDB = math.NaN()
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// nullStr converts an empty string to NULL for storage.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat converts NaN to NULL; sqlite has no NaN representation.
func nullFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
