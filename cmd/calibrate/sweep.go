package main

import (
	"fmt"

	"github.com/pthm-cable/spark/field"
)

// row is one calibration result, written to calibration.csv.
type row struct {
	Coefficient float64 `csv:"coefficient"`
	GreenSteps  int     `csv:"green_steps"`
	Radius      int     `csv:"radius"`
	NaiveSpread float64 `csv:"naive_spread"` // D·t assumed by the analytic kernel
	Spread      float64 `csv:"spread"`       // D·t fitted to the empirical kernel
	Ratio       float64 `csv:"ratio"`
	Residual    float64 `csv:"residual"`
	Evals       int     `csv:"evals"`
	FitRadius   int     `csv:"fit_radius"` // analytic radius at the fitted spread
}

// sweep holds the calibration grid.
type sweep struct {
	Coefficients []float64
	Steps        []int
	TickTime     float64
	CellArea     float64
	Tolerance    float64
	MaxEvals     int
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

// run fits a Gaussian to the empirical kernel of every (coefficient, steps)
// pair. The empirical kernel radius equals the step count, which is the
// furthest an impulse can travel.
func (sw sweep) run(progress func(i, total int, r row)) ([]row, error) {
	total := len(sw.Coefficients) * len(sw.Steps)
	rows := make([]row, 0, total)
	for _, d := range sw.Coefficients {
		for _, steps := range sw.Steps {
			k := field.EmpiricalKernel(d, steps, steps)
			fit, err := field.FitGaussian(k, sw.CellArea, sw.MaxEvals)
			if err != nil {
				return rows, fmt.Errorf("D=%g steps=%d: %w", d, steps, err)
			}
			fitRadius, err := field.FindConvolutionRadius(1, fit.Spread, sw.CellArea, sw.Tolerance, 0, -1)
			if err != nil {
				fitRadius = -1
			}
			r := row{
				Coefficient: d,
				GreenSteps:  steps,
				Radius:      steps,
				NaiveSpread: d * sw.TickTime,
				Spread:      fit.Spread,
				Residual:    fit.Residual,
				Evals:       fit.Evals,
				FitRadius:   fitRadius,
			}
			if r.NaiveSpread > 0 {
				r.Ratio = r.Spread / r.NaiveSpread
			}
			rows = append(rows, r)
			if progress != nil {
				progress(len(rows), total, r)
			}
		}
	}
	return rows, nil
}
