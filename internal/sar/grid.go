// Package sar implements the SAR backscatter analysis core: radiometric
// calibration, speckle suppression, adaptive ice segmentation and
// multi-temporal change detection over fixed-size raster grids.
//
// The package never touches files or the network. Callers supply raw
// digital-number grids with a known pixel size and consume numeric results;
// acquisition and raster decoding live outside this module.
package sar

import "fmt"

// Grid is a fixed-size 2-D raster in row-major order with a per-pixel
// validity mask. Invalid pixels carry a zero value and must be skipped by
// every statistic computed over the grid.
type Grid struct {
	Width  int
	Height int
	Data   []float64 // len = Width*Height, row-major
	Valid  []bool    // len = Width*Height
}

// NewGrid allocates a grid of the given dimensions with all pixels valid.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}
	g := &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
		Valid:  make([]bool, width*height),
	}
	for i := range g.Valid {
		g.Valid[i] = true
	}
	return g, nil
}

// Index converts (x, y) coordinates to a flat index. No bounds check.
func (g *Grid) Index(x, y int) int { return y*g.Width + x }

// At returns the value at (x, y). No bounds check.
func (g *Grid) At(x, y int) float64 { return g.Data[y*g.Width+x] }

// IsValid reports whether the pixel at (x, y) is usable.
func (g *Grid) IsValid(x, y int) bool { return g.Valid[y*g.Width+x] }

// Set stores a value at (x, y) and marks the pixel valid.
func (g *Grid) Set(x, y int, v float64) {
	i := y*g.Width + x
	g.Data[i] = v
	g.Valid[i] = true
}

// SetInvalid clears the pixel at (x, y). The stored value is zeroed so stale
// data can never leak into downstream statistics.
func (g *Grid) SetInvalid(x, y int) {
	i := y*g.Width + x
	g.Data[i] = 0
	g.Valid[i] = false
}

// SameShape reports whether two grids have identical dimensions.
func (g *Grid) SameShape(other *Grid) bool {
	return g.Width == other.Width && g.Height == other.Height
}

// CountValid returns the number of usable pixels.
func (g *Grid) CountValid() int {
	n := 0
	for _, ok := range g.Valid {
		if ok {
			n++
		}
	}
	return n
}

// ValidValues returns a fresh slice holding the values of all usable pixels.
func (g *Grid) ValidValues() []float64 {
	vals := make([]float64, 0, len(g.Data))
	for i, ok := range g.Valid {
		if ok {
			vals = append(vals, g.Data[i])
		}
	}
	return vals
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Width:  g.Width,
		Height: g.Height,
		Data:   make([]float64, len(g.Data)),
		Valid:  make([]bool, len(g.Valid)),
	}
	copy(out.Data, g.Data)
	copy(out.Valid, g.Valid)
	return out
}

// reflectCoord maps an out-of-range coordinate back into [0, n) by
// reflection about the grid edge, so window filters never read out of
// bounds. n must be at least 1.
func reflectCoord(c, n int) int {
	if n == 1 {
		return 0
	}
	for c < 0 || c >= n {
		if c < 0 {
			c = -c - 1
		}
		if c >= n {
			c = 2*n - c - 1
		}
	}
	return c
}

// Mask is a boolean grid matching the dimensions of the raster it was
// derived from.
type Mask struct {
	Width  int
	Height int
	Bits   []bool // len = Width*Height, row-major
}

// NewMask allocates an all-false mask of the given dimensions.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Bits:   make([]bool, width*height),
	}
}

// At reports the bit at (x, y). No bounds check.
func (m *Mask) At(x, y int) bool { return m.Bits[y*m.Width+x] }

// Set stores a bit at (x, y). No bounds check.
func (m *Mask) Set(x, y int, v bool) { m.Bits[y*m.Width+x] = v }

// Count returns the number of set bits.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Width, m.Height)
	copy(out.Bits, m.Bits)
	return out
}
