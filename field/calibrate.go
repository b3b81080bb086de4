package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// GaussianFit is the Gaussian kernel that best matches an empirical one.
type GaussianFit struct {
	// Spread is tickTime·D, the only quantity the Gaussian depends on for a
	// fixed cell area.
	Spread   float64 `csv:"spread"`
	Residual float64 `csv:"residual"`
	Evals    int     `csv:"evals"`
}

// FitGaussian finds the spread whose Gaussian kernel over the same radius
// minimizes the squared error against k. The search runs in log space with
// Nelder-Mead, starting from the spread implied by k's variance.
func FitGaussian(k *mat.Dense, cellArea float64, maxEvals int) (GaussianFit, error) {
	rows, cols := k.Dims()
	if rows != cols || rows%2 == 0 {
		return GaussianFit{}, fmt.Errorf("%w: kernel must be square with odd size, got %dx%d", ErrConfig, rows, cols)
	}
	if cellArea <= 0 {
		return GaussianFit{}, fmt.Errorf("%w: cell area %g", ErrConfig, cellArea)
	}
	r := rows / 2
	target := mat.DenseCopyOf(k)
	normalize(target)
	want := target.RawMatrix().Data

	// Per-axis variance of exp(-x²/(4·s·a)) is 2·s·a.
	var variance float64
	for j := -r; j <= r; j++ {
		for i := -r; i <= r; i++ {
			variance += target.At(j+r, i+r) * float64(i*i)
		}
	}
	init := math.Max(variance/(2*cellArea), 1e-6)

	residual := func(spread float64) float64 {
		g := GaussianKernel(1, spread, cellArea, r)
		return floats.Distance(g.RawMatrix().Data, want, 2)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return residual(math.Exp(x[0]))
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, []float64{math.Log(init)}, settings, &optimize.NelderMead{})
	if err != nil {
		return GaussianFit{}, fmt.Errorf("fit gaussian: %w", err)
	}
	spread := math.Exp(result.X[0])
	return GaussianFit{
		Spread:   spread,
		Residual: residual(spread),
		Evals:    result.Stats.FuncEvaluations,
	}, nil
}
