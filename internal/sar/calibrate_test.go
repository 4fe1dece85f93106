package sar

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrateMonotonic(t *testing.T) {
	g, err := NewGrid(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	dns := []float64{1, 10, 100, 1000, 10000}
	for i, dn := range dns {
		g.Data[i] = dn
	}

	out, err := Calibrator{ConstantDB: 83}.Calibrate(g)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	for i := 1; i < len(dns); i++ {
		if out.Data[i] <= out.Data[i-1] {
			t.Errorf("calibration not monotonic: DN %v -> %v dB, DN %v -> %v dB",
				dns[i-1], out.Data[i-1], dns[i], out.Data[i])
		}
	}
}

func TestCalibrateFormula(t *testing.T) {
	g, err := NewGrid(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	g.Data[0] = 100 // 10*log10(100^2) = 40 dB

	out, err := Calibrator{ConstantDB: 83}.Calibrate(g)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	want := 40.0 - 83.0
	if math.Abs(out.Data[0]-want) > 1e-9 {
		t.Errorf("calibrated value = %v, want %v", out.Data[0], want)
	}
}

func TestCalibrateInvalidSentinel(t *testing.T) {
	g, err := NewGrid(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	g.Data[0] = 50
	g.Data[1] = 0          // zero DN
	g.Data[2] = -3         // negative DN
	g.Data[3] = math.NaN() // corrupt cell

	out, err := Calibrator{ConstantDB: 83}.Calibrate(g)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if !out.Valid[0] {
		t.Error("positive DN should stay valid")
	}
	for i := 1; i < 4; i++ {
		if out.Valid[i] {
			t.Errorf("pixel %d should be invalid", i)
		}
		if out.Data[i] != 0 {
			t.Errorf("invalid pixel %d should carry the zero sentinel, got %v", i, out.Data[i])
		}
	}
	// No -Inf or NaN may survive anywhere in the output.
	for i, v := range out.Data {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("pixel %d holds non-finite value %v", i, v)
		}
	}
}

func TestCalibrateDegenerateInput(t *testing.T) {
	g, err := NewGrid(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	// All zero: nothing to calibrate.
	_, err = Calibrator{ConstantDB: 83}.Calibrate(g)

	var calErr *CalibrationError
	if !errors.As(err, &calErr) {
		t.Fatalf("expected CalibrationError, got %v", err)
	}
}
