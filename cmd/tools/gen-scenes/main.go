// Command gen-scenes writes a synthetic multi-year scene set (CSV rasters
// plus a manifest) for exercising the analysis pipeline end to end without
// real acquisitions. The glacier is a low-amplitude block that shrinks a few
// pixels per year; the surrounding terrain carries mild deterministic
// speckle.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

var (
	outDir    = flag.String("out", "testdata/synthetic", "Output directory")
	width     = flag.Int("width", 200, "Raster width in pixels")
	height    = flag.Int("height", 200, "Raster height in pixels")
	startYear = flag.Int("start-year", 2018, "First acquisition year")
	years     = flag.Int("years", 6, "Number of yearly acquisitions")
	seed      = flag.Int64("seed", 1, "Deterministic noise seed")
)

type manifestEntry struct {
	ID            string  `json:"id"`
	Date          string  `json:"date"`
	RasterPath    string  `json:"raster_path"`
	PixelSpacingM float64 `json:"pixel_spacing_m"`
}

func main() {
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	var manifest []manifestEntry

	for i := 0; i < *years; i++ {
		year := *startYear + i
		id := fmt.Sprintf("SYNTH_%d0715", year)
		path := filepath.Join(*outDir, id+".csv")

		// Glacier block shrinks by two pixels per side per year.
		side := *width/2 - 2*i
		if side < 8 {
			side = 8
		}
		if err := writeRaster(path, *width, *height, side, rng); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}

		// Manifest-relative so the scene set can be moved as a directory.
		manifest = append(manifest, manifestEntry{
			ID:            id,
			Date:          fmt.Sprintf("%d-07-15", year),
			RasterPath:    id + ".csv",
			PixelSpacingM: 10,
		})
		log.Printf("wrote %s (glacier %dx%d px)", path, side, side)
	}

	manifestPath := filepath.Join(*outDir, "scenes.json")
	blob, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(manifestPath, blob, 0o644); err != nil {
		log.Fatalf("Failed to write manifest: %v", err)
	}
	log.Printf("wrote %s with %d scenes", manifestPath, len(manifest))
}

// writeRaster emits raw digital numbers: darker ice block in the top-left
// corner, brighter terrain elsewhere, multiplicative speckle on both.
func writeRaster(path string, w, h, iceSide int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	row := make([]string, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := 180.0 // terrain amplitude
			if x < iceSide && y < iceSide {
				base = 40.0 // radar-dark ice
			}
			speckle := 1 + 0.2*(rng.Float64()-0.5)
			row[x] = strconv.FormatFloat(base*speckle, 'f', 2, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
