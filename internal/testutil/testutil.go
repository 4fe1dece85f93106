// Package testutil provides shared raster fixtures and assertion helpers.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"
	"time"

	"github.com/alpine-sar/glacier.report/internal/sar"
)

// Date builds a midnight UTC time for the given calendar day.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ConstantGrid returns a w x h grid filled with v, all pixels valid.
func ConstantGrid(t *testing.T, w, h int, v float64) *sar.Grid {
	t.Helper()
	g, err := sar.NewGrid(w, h)
	if err != nil {
		t.Fatalf("NewGrid(%d, %d): %v", w, h, err)
	}
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// BlockGrid returns a w x h grid filled with base, with the rectangle
// [x0, x0+bw) x [y0, y0+bh) set to block.
func BlockGrid(t *testing.T, w, h int, base float64, x0, y0, bw, bh int, block float64) *sar.Grid {
	t.Helper()
	g := ConstantGrid(t, w, h, base)
	for y := y0; y < y0+bh; y++ {
		for x := x0; x < x0+bw; x++ {
			g.Set(x, y, block)
		}
	}
	return g
}

// RampGrid returns a w x h grid whose values increase by one per pixel in
// row-major order, giving every pixel a distinct value. Useful for
// percentile assertions.
func RampGrid(t *testing.T, w, h int) *sar.Grid {
	t.Helper()
	g, err := sar.NewGrid(w, h)
	if err != nil {
		t.Fatalf("NewGrid(%d, %d): %v", w, h, err)
	}
	for i := range g.Data {
		g.Data[i] = float64(i)
	}
	return g
}

// Scene wraps a grid into a Scene with a 100 m² pixel (10 m GRD spacing).
func Scene(g *sar.Grid, date time.Time) sar.Scene {
	return sar.Scene{Raster: g, AcquisitionDate: date, PixelAreaM2: 100}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta fails the test unless got is within delta of want.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > delta {
		t.Errorf("got %v, want %v (±%v)", got, want, delta)
	}
}
