package db

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alpine-sar/glacier.report/internal/timeseries"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenDB(filepath.Join(t.TempDir(), "analysis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp())
	return database
}

func TestMigrateUpDownVersion(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "analysis.db"))
	require.NoError(t, err)
	defer database.Close()

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(0), version)

	require.NoError(t, database.MigrateUp())
	version, dirty, err = database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// Up again is a no-op, not an error.
	require.NoError(t, database.MigrateUp())

	require.NoError(t, database.MigrateDown())
	var count int
	err = database.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'analysis_runs'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRunLifecycle(t *testing.T) {
	store := NewRunStore(openTestDB(t))

	params := map[string]interface{}{"ice_percentile": 33.3, "despeckle_method": "adaptive_lee"}
	runID, err := store.BeginRun(params)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	require.Equal(t, "running", run.Status)
	require.Nil(t, run.CompletedAt)
	require.Empty(t, run.Error)

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(run.Params, &stored))
	require.Equal(t, 33.3, stored["ice_percentile"])

	require.NoError(t, store.CompleteRun(runID, nil))
	run, err = store.GetRun(runID)
	require.NoError(t, err)
	require.Equal(t, "complete", run.Status)
	require.NotNil(t, run.CompletedAt)
	require.False(t, run.CompletedAt.Before(run.StartedAt))
}

func TestCompleteRunRecordsFailure(t *testing.T) {
	store := NewRunStore(openTestDB(t))

	runID, err := store.BeginRun(map[string]int{"workers": 4})
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(runID, errors.New("raster dimensions differ between scenes")))

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	require.Equal(t, "failed", run.Status)
	require.Contains(t, run.Error, "raster dimensions")
}

func TestSceneMetricsOrderedByDate(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	runID, err := store.BeginRun(struct{}{})
	require.NoError(t, err)

	later := SceneMetric{
		RunID:             runID,
		SceneID:           "S1A_2021",
		AcquisitionDate:   time.Date(2021, 7, 12, 0, 0, 0, 0, time.UTC),
		Year:              2021,
		ThresholdDB:       -18.4,
		IceAreaKm2:        24.1,
		MeanBackscatterDB: -20.2,
		ValidPixels:       9900,
		IcePixels:         2410,
	}
	earlier := SceneMetric{
		RunID:           runID,
		SceneID:         "S1A_2019",
		AcquisitionDate: time.Date(2019, 7, 15, 0, 0, 0, 0, time.UTC),
		Year:            2019,
		ThresholdDB:     -18.1,
		IceAreaKm2:      26.8,
		// Mean over an empty ice mask comes through as NaN.
		MeanBackscatterDB: math.NaN(),
		ValidPixels:       10000,
		IcePixels:         0,
	}
	require.NoError(t, store.InsertSceneMetric(later))
	require.NoError(t, store.InsertSceneMetric(earlier))

	metrics, err := store.ListSceneMetrics(runID)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.Equal(t, "S1A_2019", metrics[0].SceneID)
	require.Equal(t, "S1A_2021", metrics[1].SceneID)
	require.True(t, math.IsNaN(metrics[0].MeanBackscatterDB))
	require.Equal(t, -20.2, metrics[1].MeanBackscatterDB)
	require.Equal(t, time.Date(2019, 7, 15, 0, 0, 0, 0, time.UTC), metrics[0].AcquisitionDate)
}

func TestInsertExcludedScene(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	runID, err := store.BeginRun(struct{}{})
	require.NoError(t, err)

	require.NoError(t, store.InsertExcludedScene(runID, "S1A_2020", 2020, "corrupt scene: raster is all zero"))

	var reason string
	err = store.db.QueryRow(`SELECT reason FROM excluded_scenes WHERE run_id = ? AND year = 2020`, runID).Scan(&reason)
	require.NoError(t, err)
	require.Contains(t, reason, "all zero")
}

func TestInsertChangeSummary(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	runID, err := store.BeginRun(struct{}{})
	require.NoError(t, err)

	require.NoError(t, store.InsertChangeSummary(ChangeSummary{
		RunID:                runID,
		BeforeSceneID:        "S1A_2019",
		AfterSceneID:         "S1A_2020",
		Method:               "difference",
		ValidPixels:          9800,
		PercentAreaDecreased: 9.0,
		PercentAreaIncreased: 0.2,
		MeanChangeDB:         -1.26,
		StdChangeDB:          4.02,
		MaxDecreaseDB:        -14,
		MaxIncreaseDB:        3.4,
	}))

	var mean float64
	err = store.db.QueryRow(`SELECT mean_change_db FROM change_summaries WHERE run_id = ?`, runID).Scan(&mean)
	require.NoError(t, err)
	require.InDelta(t, -1.26, mean, 1e-9)
}

func TestInsertTrend(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	runID, err := store.BeginRun(struct{}{})
	require.NoError(t, err)

	t.Run("with trends", func(t *testing.T) {
		res := &timeseries.Result{
			Samples: []timeseries.Sample{
				{Year: 2019, IceAreaKm2: 26.8}, {Year: 2020, IceAreaKm2: 25.4}, {Year: 2021, IceAreaKm2: 24.1},
			},
			AreaTrend:         &timeseries.Trend{SlopePerYear: -1.35, RSquared: 0.999, PValue: 0.01, StdErr: 0.05},
			BackscatterTrend:  &timeseries.Trend{SlopePerYear: 0.2, RSquared: 0.9, PValue: 0.15},
			AreaCV:            0.05,
			TotalChangeKm2:    -2.7,
			RelativeChangePct: -10.07,
		}
		require.NoError(t, store.InsertTrend(runID, res))

		var slope float64
		err = store.db.QueryRow(`SELECT area_slope_km2 FROM trend_results WHERE run_id = ?`, runID).Scan(&slope)
		require.NoError(t, err)
		require.InDelta(t, -1.35, slope, 1e-9)
	})

	t.Run("insufficient data stores nulls", func(t *testing.T) {
		shortID, err := store.BeginRun(struct{}{})
		require.NoError(t, err)

		res := &timeseries.Result{
			Samples:           []timeseries.Sample{{Year: 2020, IceAreaKm2: 25.4}},
			InsufficientData:  true,
			AreaCV:            math.NaN(),
			TotalChangeKm2:    0,
			RelativeChangePct: 0,
		}
		require.NoError(t, store.InsertTrend(shortID, res))

		var insufficient int
		var slope interface{}
		err = store.db.QueryRow(`SELECT insufficient_data, area_slope_km2 FROM trend_results WHERE run_id = ?`, shortID).Scan(&insufficient, &slope)
		require.NoError(t, err)
		require.Equal(t, 1, insufficient)
		require.Nil(t, slope)
	})
}
