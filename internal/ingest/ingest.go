// Package ingest is the thin boundary adapter between on-disk scene data and
// the analysis core. It reads a JSON manifest describing acquisitions and
// loads raw digital-number grids from CSV files. The core packages never see
// a file path; anything beyond this loader (archive download, GeoTIFF
// decoding, reprojection) is out of scope for this repository.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alpine-sar/glacier.report/internal/pipeline"
	"github.com/alpine-sar/glacier.report/internal/sar"
	"github.com/alpine-sar/glacier.report/internal/security"
)

// ManifestEntry describes one acquisition in the manifest file.
type ManifestEntry struct {
	// ID names the scene; typically the source granule name.
	ID string `json:"id"`

	// Date is the acquisition date, YYYY-MM-DD.
	Date string `json:"date"`

	// RasterPath is the CSV file holding raw digital numbers, one row per
	// raster row. Relative paths are taken from the manifest's directory.
	RasterPath string `json:"raster_path"`

	// PixelSpacingM is the ground sampling distance in meters.
	PixelSpacingM float64 `json:"pixel_spacing_m"`

	// CalibrationConstantDB optionally overrides the run-level K.
	CalibrationConstantDB *float64 `json:"calibration_constant_db,omitempty"`
}

// LoadManifest reads a manifest JSON file: a list of ManifestEntry.
func LoadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %s lists no scenes", path)
	}
	return entries, nil
}

// LoadGridCSV reads a rectangular CSV of float values into a grid. Empty
// cells and the literal "nan" are marked invalid (nodata).
func LoadGridCSV(path string) (*sar.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated below for a clearer error
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading raster %s: %w", path, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("raster %s is empty", path)
	}

	width := len(rows[0])
	g, err := sar.NewGrid(width, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("raster %s: row %d has %d columns, expected %d", path, y, len(row), width)
		}
		for x, cell := range row {
			if cell == "" || cell == "nan" || cell == "NaN" {
				g.SetInvalid(x, y)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("raster %s: bad value at row %d col %d: %w", path, y, x, err)
			}
			g.Set(x, y, v)
		}
	}
	return g, nil
}

// LoadScenes resolves a manifest into pipeline inputs, loading every raster.
// Raster paths are taken relative to manifestDir and must stay inside it;
// manifests travel with their rasters, so a path reaching elsewhere is either
// a broken manifest or an attack.
func LoadScenes(manifestDir string, entries []ManifestEntry) ([]pipeline.SceneInput, error) {
	out := make([]pipeline.SceneInput, 0, len(entries))
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return nil, fmt.Errorf("scene %s: bad date %q: %w", e.ID, e.Date, err)
		}
		if e.PixelSpacingM <= 0 {
			return nil, fmt.Errorf("scene %s: pixel_spacing_m must be positive, got %v", e.ID, e.PixelSpacingM)
		}
		rasterPath := e.RasterPath
		if !filepath.IsAbs(rasterPath) {
			rasterPath = filepath.Join(manifestDir, rasterPath)
		}
		if err := security.ValidatePathWithinDirectory(rasterPath, manifestDir); err != nil {
			return nil, fmt.Errorf("scene %s: %w", e.ID, err)
		}
		g, err := LoadGridCSV(rasterPath)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", e.ID, err)
		}
		out = append(out, pipeline.SceneInput{
			ID: e.ID,
			Scene: sar.Scene{
				Raster:          g,
				AcquisitionDate: date,
				PixelAreaM2:     e.PixelSpacingM * e.PixelSpacingM,
			},
			CalibrationConstantDB: e.CalibrationConstantDB,
		})
	}
	return out, nil
}
