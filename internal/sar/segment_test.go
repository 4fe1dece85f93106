package sar

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testScene(g *Grid) Scene {
	return Scene{
		Raster:          g,
		AcquisitionDate: time.Date(2020, 7, 15, 0, 0, 0, 0, time.UTC),
		PixelAreaM2:     100,
	}
}

func defaultSegmenter() Segmenter {
	return Segmenter{Percentile: 33.3, MinValidPixels: 100, MinComponentPixels: 4}
}

func TestSegmentPercentileInvariant(t *testing.T) {
	// Distinct increasing values in row-major order: the lowest p% of the
	// distribution forms a solid top block, so morphological cleanup only
	// nibbles at the partial last row.
	g, err := NewGrid(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -25 + float64(i)*0.002
	}

	seg, err := defaultSegmenter().Segment(testScene(g))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	frac := float64(seg.IceMask.Count()) / 10000
	if math.Abs(frac-0.333) > 0.02 {
		t.Errorf("ice fraction = %.4f, want ~0.333", frac)
	}
}

func TestSegmentThresholdSeparatesBimodal(t *testing.T) {
	// 30x30 radar-dark corner at -19 dB against -15 dB terrain: exactly the
	// low tail the percentile should isolate.
	g, err := NewGrid(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -15
	}
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			g.Set(x, y, -19)
		}
	}

	s := Segmenter{Percentile: 9, MinValidPixels: 100, MinComponentPixels: 4}
	seg, err := s.Segment(testScene(g))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if seg.ThresholdDB != -19 {
		t.Errorf("threshold = %v dB, want -19", seg.ThresholdDB)
	}
	// Closing treats pixels beyond the raster edge as unset, so the block's
	// two image-border sides lose a one-pixel ring: 29x29 remains.
	if got := seg.IceMask.Count(); got != 841 {
		t.Errorf("ice pixels = %d, want 841", got)
	}
	// 841 pixels × 100 m² = 0.0841 km².
	if math.Abs(seg.IceAreaKm2-0.0841) > 1e-12 {
		t.Errorf("ice area = %v km², want 0.0841", seg.IceAreaKm2)
	}
	if math.Abs(seg.MeanBackscatterDB-(-19)) > 1e-12 {
		t.Errorf("mean backscatter = %v dB, want -19", seg.MeanBackscatterDB)
	}
	if seg.IcePercentile != 9 {
		t.Errorf("recorded percentile = %v, want 9", seg.IcePercentile)
	}
}

func TestSegmentAreaStableAcrossScenes(t *testing.T) {
	// Two scenes with the same spatial structure but shifted brightness:
	// the percentile threshold adapts, the classified fraction does not.
	build := func(offset float64) *Grid {
		g, err := NewGrid(100, 100)
		if err != nil {
			t.Fatal(err)
		}
		for i := range g.Data {
			g.Data[i] = -15 + offset
		}
		for y := 0; y < 30; y++ {
			for x := 0; x < 30; x++ {
				g.Set(x, y, -19+offset)
			}
		}
		return g
	}

	s := Segmenter{Percentile: 9, MinValidPixels: 100, MinComponentPixels: 4}
	a, err := s.Segment(testScene(build(0)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Segment(testScene(build(2.5))) // wetter year, everything brighter
	if err != nil {
		t.Fatal(err)
	}

	if a.IceAreaKm2 != b.IceAreaKm2 {
		t.Errorf("areas differ across brightness shift: %v vs %v", a.IceAreaKm2, b.IceAreaKm2)
	}
	if a.ThresholdDB == b.ThresholdDB {
		t.Error("absolute thresholds should differ between shifted scenes")
	}
}

func TestSegmentFillsNodataHoleWithoutSkewingMean(t *testing.T) {
	// A single nodata pixel inside an ice patch: closing fills the hole, so
	// it counts toward area, but its zeroed sentinel value must never enter
	// the backscatter mean.
	g, err := NewGrid(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -15
	}
	for y := 10; y < 41; y++ {
		for x := 10; x < 40; x++ {
			g.Set(x, y, -19)
		}
	}
	g.SetInvalid(25, 25)

	s := Segmenter{Percentile: 9, MinValidPixels: 100, MinComponentPixels: 4}
	seg, err := s.Segment(testScene(g))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if !seg.IceMask.At(25, 25) {
		t.Error("closing did not fill the nodata hole")
	}
	// 30x31 block fully restored, hole included.
	if got := seg.IceMask.Count(); got != 930 {
		t.Errorf("ice pixels = %d, want 930", got)
	}
	if math.Abs(seg.MeanBackscatterDB-(-19)) > 1e-12 {
		t.Errorf("mean backscatter = %v dB, want exactly -19", seg.MeanBackscatterDB)
	}
}

func TestSegmentDropsNoiseComponents(t *testing.T) {
	g, err := NewGrid(50, 50)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -12
	}
	// A real ice patch and two isolated dark pixels.
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			g.Set(x, y, -20)
		}
	}
	g.Set(45, 45, -20)
	g.Set(2, 46, -20)

	// 402 of 2500 pixels are dark (16.08%); percentile 16 lands inside the
	// dark mode.
	s := Segmenter{Percentile: 16, MinValidPixels: 100, MinComponentPixels: 4}
	seg, err := s.Segment(testScene(g))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if seg.IceMask.At(45, 45) || seg.IceMask.At(2, 46) {
		t.Error("isolated noise pixels survived post-processing")
	}
	if !seg.IceMask.At(20, 20) {
		t.Error("real ice patch removed")
	}
}

func TestSegmentInsufficientData(t *testing.T) {
	g, err := NewGrid(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -10
	}

	_, err = defaultSegmenter().Segment(testScene(g))
	var insufErr *InsufficientDataError
	if !errors.As(err, &insufErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufErr.ValidPixels != 25 || insufErr.MinPixels != 100 {
		t.Errorf("error detail = %+v", insufErr)
	}
}

func TestSegmentRejectsBadPercentile(t *testing.T) {
	g, err := NewGrid(20, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = -10
	}
	for _, p := range []float64{0, 100, -5, 130} {
		s := Segmenter{Percentile: p, MinValidPixels: 10, MinComponentPixels: 1}
		if _, err := s.Segment(testScene(g)); err == nil {
			t.Errorf("percentile %v accepted", p)
		}
	}
}
