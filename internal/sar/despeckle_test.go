package sar

import (
	"errors"
	"math"
	"testing"
)

func constantGrid(t *testing.T, w, h int, v float64) *Grid {
	t.Helper()
	g, err := NewGrid(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestNewDespecklerRejectsBadWindows(t *testing.T) {
	cases := []struct {
		name   string
		method DespeckleMethod
		window int
	}{
		{"even window", MethodMedian, 4},
		{"window too small", MethodMedian, 1},
		{"negative window", MethodAdaptiveLee, -3},
		{"unknown method", DespeckleMethod("boxcar"), 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDespeckler(tc.method, tc.window)
			var winErr *InvalidWindowError
			if !errors.As(err, &winErr) {
				t.Fatalf("expected InvalidWindowError, got %v", err)
			}
		})
	}
}

func TestDespeckleShapePreserved(t *testing.T) {
	g := constantGrid(t, 17, 11, -12)
	g.Set(8, 5, -3) // one bright return

	for _, method := range []DespeckleMethod{MethodMedian, MethodAdaptiveLee} {
		for _, window := range []int{3, 5, 7} {
			d, err := NewDespeckler(method, window)
			if err != nil {
				t.Fatalf("NewDespeckler(%s, %d): %v", method, window, err)
			}
			out := d.Filter(g)
			if out.Width != g.Width || out.Height != g.Height {
				t.Errorf("%s window %d: output %dx%d, want %dx%d",
					method, window, out.Width, out.Height, g.Width, g.Height)
			}
		}
	}
}

func TestDespeckleConstantIdempotent(t *testing.T) {
	g := constantGrid(t, 12, 12, -14.5)

	for _, method := range []DespeckleMethod{MethodMedian, MethodAdaptiveLee} {
		t.Run(method.String(), func(t *testing.T) {
			d, err := NewDespeckler(method, 5)
			if err != nil {
				t.Fatal(err)
			}
			out := d.Filter(g)
			for i, v := range out.Data {
				if v != -14.5 {
					t.Fatalf("pixel %d changed to %v on constant input (edge artifact?)", i, v)
				}
			}
		})
	}
}

func TestMedianRemovesIsolatedOutlier(t *testing.T) {
	g := constantGrid(t, 9, 9, -15)
	g.Set(4, 4, 20)

	d, err := NewDespeckler(MethodMedian, 3)
	if err != nil {
		t.Fatal(err)
	}
	out := d.Filter(g)
	if got := out.At(4, 4); got != -15 {
		t.Errorf("outlier survived median filter: %v", got)
	}
}

func TestLeeShrinksTowardLocalMean(t *testing.T) {
	// A flat region: local variance is zero away from the edge, so the
	// filter must return the local mean exactly.
	g := constantGrid(t, 15, 15, -10)
	// A noisy corner pulls the global noise estimate up.
	g.Set(0, 0, -2)
	g.Set(1, 0, -18)

	d, err := NewDespeckler(MethodAdaptiveLee, 3)
	if err != nil {
		t.Fatal(err)
	}
	out := d.Filter(g)
	if got := out.At(10, 10); math.Abs(got-(-10)) > 1e-12 {
		t.Errorf("flat interior changed: %v", got)
	}
}

func TestDespecklePreservesInvalidPixels(t *testing.T) {
	g := constantGrid(t, 7, 7, -11)
	g.SetInvalid(3, 3)

	for _, method := range []DespeckleMethod{MethodMedian, MethodAdaptiveLee} {
		d, err := NewDespeckler(method, 3)
		if err != nil {
			t.Fatal(err)
		}
		out := d.Filter(g)
		if out.IsValid(3, 3) {
			t.Errorf("%s: invalid pixel became valid", method)
		}
		// Neighbours skip the invalid contributor but stay at the constant.
		if got := out.At(2, 3); got != -11 {
			t.Errorf("%s: neighbour of invalid pixel = %v, want -11", method, got)
		}
	}
}
