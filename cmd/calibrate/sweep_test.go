package main

import (
	"math"
	"testing"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		lo, hi float64
		n      int
		want   []float64
	}{
		{0, 1, 3, []float64{0, 0.5, 1}},
		{0.2, 0.8, 1, []float64{0.2}},
		{1, 1, 2, []float64{1, 1}},
	}
	for _, tt := range tests {
		got := linspace(tt.lo, tt.hi, tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("linspace(%g, %g, %d) = %v", tt.lo, tt.hi, tt.n, got)
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("linspace(%g, %g, %d)[%d] = %g, want %g", tt.lo, tt.hi, tt.n, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSweepRun(t *testing.T) {
	sw := sweep{
		Coefficients: []float64{0.2, 0.6},
		Steps:        []int{1, 3},
		TickTime:     1,
		CellArea:     1,
		Tolerance:    1e-3,
		MaxEvals:     500,
	}
	var calls int
	rows, err := sw.run(func(i, total int, r row) {
		calls++
		if total != 4 || i != calls {
			t.Errorf("progress %d/%d on call %d", i, total, calls)
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Radius != r.GreenSteps || r.Spread <= 0 || r.FitRadius < 0 {
			t.Errorf("unexpected row %+v", r)
		}
		if math.Abs(r.Ratio-r.Spread/r.NaiveSpread) > 1e-12 {
			t.Errorf("ratio %g does not match spread %g / %g", r.Ratio, r.Spread, r.NaiveSpread)
		}
	}
}
