package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Package defaults, used when a field is absent from the JSON file. Values
// follow the Sentinel-1 GRD processing chain this tool was tuned on.
const (
	DefaultCalibrationConstantDB   = 83.0
	DefaultDespeckleWindowSize     = 5
	DefaultDespeckleMethod         = "adaptive_lee"
	DefaultIcePercentile           = 33.3
	DefaultMinValidPixels          = 100
	DefaultMinComponentPixels      = 4
	DefaultSignificanceThresholdDB = 3.0
	DefaultChangeMethod            = "difference"
	DefaultMinSamplesForTrend      = 3
	DefaultWorkers                 = 4
)

// TuningConfig represents the root configuration for analysis parameters.
// Fields are pointers so partial config files are safe: anything omitted
// falls back to the package default via the Get* accessors.
type TuningConfig struct {
	// Calibration params
	CalibrationConstantDB *float64 `json:"calibration_constant_db,omitempty"`

	// Despeckle params
	DespeckleWindowSize *int    `json:"despeckle_window_size,omitempty"`
	DespeckleMethod     *string `json:"despeckle_method,omitempty"` // "median" or "adaptive_lee"

	// Segmentation params
	IcePercentile      *float64 `json:"ice_percentile,omitempty"`
	MinValidPixels     *int     `json:"min_valid_pixels,omitempty"`
	MinComponentPixels *int     `json:"min_component_pixels,omitempty"`

	// Change detection params
	SignificanceThresholdDB *float64 `json:"significance_threshold_db,omitempty"`
	ChangeMethod            *string  `json:"change_method,omitempty"` // "difference" or "ratio"

	// Time series params
	MinSamplesForTrend *int `json:"min_samples_for_trend,omitempty"`

	// Scene-level parallelism
	Workers *int `json:"workers,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted from
// the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every set field for a sane value. Unset fields are valid
// by definition since accessors substitute defaults.
func (c *TuningConfig) Validate() error {
	if c.DespeckleWindowSize != nil {
		w := *c.DespeckleWindowSize
		if w < 3 || w%2 == 0 {
			return fmt.Errorf("despeckle_window_size must be an odd integer >= 3, got %d", w)
		}
	}
	if c.DespeckleMethod != nil {
		if m := *c.DespeckleMethod; m != "median" && m != "adaptive_lee" {
			return fmt.Errorf("despeckle_method must be \"median\" or \"adaptive_lee\", got %q", m)
		}
	}
	if c.IcePercentile != nil {
		if p := *c.IcePercentile; p <= 0 || p >= 100 {
			return fmt.Errorf("ice_percentile must be in (0, 100), got %v", p)
		}
	}
	if c.MinValidPixels != nil && *c.MinValidPixels < 1 {
		return fmt.Errorf("min_valid_pixels must be positive, got %d", *c.MinValidPixels)
	}
	if c.MinComponentPixels != nil && *c.MinComponentPixels < 1 {
		return fmt.Errorf("min_component_pixels must be positive, got %d", *c.MinComponentPixels)
	}
	if c.SignificanceThresholdDB != nil && *c.SignificanceThresholdDB <= 0 {
		return fmt.Errorf("significance_threshold_db must be positive, got %v", *c.SignificanceThresholdDB)
	}
	if c.ChangeMethod != nil {
		if m := *c.ChangeMethod; m != "difference" && m != "ratio" {
			return fmt.Errorf("change_method must be \"difference\" or \"ratio\", got %q", m)
		}
	}
	if c.MinSamplesForTrend != nil && *c.MinSamplesForTrend < 3 {
		return fmt.Errorf("min_samples_for_trend must be at least 3, got %d", *c.MinSamplesForTrend)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetCalibrationConstantDB returns the calibration constant K in decibels.
func (c *TuningConfig) GetCalibrationConstantDB() float64 {
	if c.CalibrationConstantDB != nil {
		return *c.CalibrationConstantDB
	}
	return DefaultCalibrationConstantDB
}

// GetDespeckleWindowSize returns the despeckle filter window size.
func (c *TuningConfig) GetDespeckleWindowSize() int {
	if c.DespeckleWindowSize != nil {
		return *c.DespeckleWindowSize
	}
	return DefaultDespeckleWindowSize
}

// GetDespeckleMethod returns the despeckle method name.
func (c *TuningConfig) GetDespeckleMethod() string {
	if c.DespeckleMethod != nil {
		return *c.DespeckleMethod
	}
	return DefaultDespeckleMethod
}

// GetIcePercentile returns the ice-class cutoff percentile.
func (c *TuningConfig) GetIcePercentile() float64 {
	if c.IcePercentile != nil {
		return *c.IcePercentile
	}
	return DefaultIcePercentile
}

// GetMinValidPixels returns the minimum valid pixel count for segmentation.
func (c *TuningConfig) GetMinValidPixels() int {
	if c.MinValidPixels != nil {
		return *c.MinValidPixels
	}
	return DefaultMinValidPixels
}

// GetMinComponentPixels returns the minimum connected-component size.
func (c *TuningConfig) GetMinComponentPixels() int {
	if c.MinComponentPixels != nil {
		return *c.MinComponentPixels
	}
	return DefaultMinComponentPixels
}

// GetSignificanceThresholdDB returns the change significance threshold.
func (c *TuningConfig) GetSignificanceThresholdDB() float64 {
	if c.SignificanceThresholdDB != nil {
		return *c.SignificanceThresholdDB
	}
	return DefaultSignificanceThresholdDB
}

// GetChangeMethod returns the change detection method name.
func (c *TuningConfig) GetChangeMethod() string {
	if c.ChangeMethod != nil {
		return *c.ChangeMethod
	}
	return DefaultChangeMethod
}

// GetMinSamplesForTrend returns the minimum yearly samples for a trend.
func (c *TuningConfig) GetMinSamplesForTrend() int {
	if c.MinSamplesForTrend != nil {
		return *c.MinSamplesForTrend
	}
	return DefaultMinSamplesForTrend
}

// GetWorkers returns the scene-processing worker count.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers != nil {
		return *c.Workers
	}
	return DefaultWorkers
}
