package field

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/spark/space"
)

// maxRadiusIterations caps the convolution radius search.
const maxRadiusIterations = 1 << 16

// DiffusionParams configures a Diffuse layer.
type DiffusionParams struct {
	// Coefficient is the fraction of a cell's value spread to its eight
	// neighbours per tick, in [0, 1].
	Coefficient float64 `yaml:"coefficient"`
	// Evaporation is the fraction lost per tick, in [0, 1].
	Evaporation float64 `yaml:"evaporation"`

	// UseGreen replaces the per-tick neighbour update with a single
	// convolution by a precomputed kernel.
	UseGreen bool `yaml:"use_green"`
	// Empirical builds the kernel by running GreenSteps direct steps on an
	// impulse instead of evaluating the Gaussian.
	Empirical  bool `yaml:"empirical"`
	GreenSteps int  `yaml:"green_steps"`

	// Gaussian kernel inputs.
	TickTime  float64 `yaml:"tick_time"`
	Tolerance float64 `yaml:"tolerance"`

	// Radius fixes the kernel radius. Zero searches for it, clamped to
	// [MinRadius, MaxRadius]; a negative MaxRadius is unbounded. A searched
	// Gaussian kernel needs MaxRadius set, since zero would cap it at the
	// identity.
	Radius    int `yaml:"radius"`
	MinRadius int `yaml:"min_radius"`
	MaxRadius int `yaml:"max_radius"`
}

func (p DiffusionParams) validate() error {
	if p.Coefficient < 0 || p.Coefficient > 1 {
		return fmt.Errorf("%w: diffusion coefficient %g outside [0, 1]", ErrConfig, p.Coefficient)
	}
	if p.Evaporation < 0 || p.Evaporation > 1 {
		return fmt.Errorf("%w: evaporation %g outside [0, 1]", ErrConfig, p.Evaporation)
	}
	if p.UseGreen && p.Empirical && p.GreenSteps < 1 {
		return fmt.Errorf("%w: empirical kernel needs at least one step, got %d", ErrConfig, p.GreenSteps)
	}
	if p.UseGreen && !p.Empirical && p.Radius <= 0 && p.MaxRadius == 0 {
		return fmt.Errorf("%w: gaussian kernel search needs max_radius > 0 or -1 for unbounded", ErrConfig)
	}
	return nil
}

// Diffuse is a 2D copy-on-write layer that diffuses and evaporates its
// contents once per tick. Indices wrap on both axes. The strategy, direct
// neighbour update or Green's function convolution, is fixed at construction.
type Diffuse struct {
	*ParallelGrid
	params DiffusionParams
	kernel *mat.Dense
	radius int
}

// NewDiffuse creates a diffusing layer of nx by ny cells over the 2D space s.
func NewDiffuse(name string, s *space.Space, nx, ny int, p DiffusionParams) (*Diffuse, error) {
	if s != nil && s.Topology().Dims != 2 {
		return nil, fmt.Errorf("%w: diffusion layer %q needs a 2D space", ErrConfig, name)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	g, err := NewParallelGrid(name, s, nx, ny)
	if err != nil {
		return nil, err
	}
	d := &Diffuse{ParallelGrid: g, params: p}
	if err := d.rebuild(); err != nil {
		return nil, err
	}
	return d, nil
}

// Params returns the current diffusion parameters.
func (d *Diffuse) Params() DiffusionParams { return d.params }

// Kernel returns the convolution kernel, or nil in direct mode.
func (d *Diffuse) Kernel() *mat.Dense { return d.kernel }

// Radius returns the kernel radius, or 0 in direct mode.
func (d *Diffuse) Radius() int { return d.radius }

// SetCoefficient changes the diffusion coefficient and rebuilds the kernel.
func (d *Diffuse) SetCoefficient(c float64) error {
	return d.update(func(p *DiffusionParams) { p.Coefficient = c })
}

// SetEvaporation changes the evaporation rate and rebuilds the kernel.
func (d *Diffuse) SetEvaporation(e float64) error {
	return d.update(func(p *DiffusionParams) { p.Evaporation = e })
}

// SetGreenSteps changes the empirical step count and rebuilds the kernel.
func (d *Diffuse) SetGreenSteps(n int) error {
	return d.update(func(p *DiffusionParams) { p.GreenSteps = n })
}

func (d *Diffuse) update(fn func(*DiffusionParams)) error {
	p := d.params
	fn(&p)
	if err := p.validate(); err != nil {
		return err
	}
	old := d.params
	d.params = p
	if err := d.rebuild(); err != nil {
		d.params = old
		return err
	}
	return nil
}

func (d *Diffuse) rebuild() error {
	p := d.params
	if !p.UseGreen {
		d.kernel, d.radius = nil, 0
		return nil
	}

	r := p.Radius
	switch {
	case r > 0:
	case p.Empirical:
		r = p.GreenSteps
	default:
		var err error
		r, err = FindConvolutionRadius(p.Coefficient, p.TickTime, d.CellVolume(), p.Tolerance, p.MinRadius, p.MaxRadius)
		if err != nil {
			return fmt.Errorf("layer %q: %w", d.name, err)
		}
	}

	var k *mat.Dense
	if p.Empirical {
		k = EmpiricalKernel(p.Coefficient, p.GreenSteps, r)
	} else {
		k = GaussianKernel(p.Coefficient, p.TickTime, d.CellVolume(), r)
	}
	k.Scale(1-p.Evaporation, k)
	d.kernel, d.radius = k, r

	slog.Debug("diffusion kernel built",
		"layer", d.name,
		"radius", r,
		"empirical", p.Empirical,
		"coefficient", p.Coefficient,
	)
	return nil
}

// Process applies the step function, if any, then one diffusion pass, and
// publishes the result as a new array.
func (d *Diffuse) Process(tick int64) {
	src := d.Snapshot()
	if d.stepFn != nil {
		src = d.applyStep(src, tick)
	}
	dst := make([]float64, len(src))
	nx, ny := d.n[0], d.n[1]
	if d.kernel != nil {
		convolve(dst, src, nx, ny, d.kernel.RawMatrix().Data, d.radius)
	} else {
		diffuseStep(dst, src, nx, ny, d.params.Coefficient, d.params.Evaporation)
	}
	d.publish(dst)
}

// diffuseStep computes v' = (v(1-c) + c/8 * sum of the 8 neighbours)(1-evap)
// with wrapping indices.
func diffuseStep(dst, src []float64, nx, ny int, c, evap float64) {
	keep := 1 - c
	spread := c / 8
	decay := 1 - evap
	for j := 0; j < ny; j++ {
		jm := (j - 1 + ny) % ny
		jp := (j + 1) % ny
		for i := 0; i < nx; i++ {
			im := (i - 1 + nx) % nx
			ip := (i + 1) % nx
			sum := src[jm*nx+im] + src[jm*nx+i] + src[jm*nx+ip] +
				src[j*nx+im] + src[j*nx+ip] +
				src[jp*nx+im] + src[jp*nx+i] + src[jp*nx+ip]
			dst[j*nx+i] = (src[j*nx+i]*keep + spread*sum) * decay
		}
	}
}

// convolve applies a (2r+1)x(2r+1) row-major kernel with wrapping indices:
// out(x) = sum over d of k(d) * src(x - d).
func convolve(dst, src []float64, nx, ny int, k []float64, r int) {
	size := 2*r + 1
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var sum float64
			for dj := -r; dj <= r; dj++ {
				sj := space.RestrictIndex(j-dj, ny, true)
				row := k[(dj+r)*size:]
				for di := -r; di <= r; di++ {
					w := row[di+r]
					if w == 0 {
						continue
					}
					sum += w * src[sj*nx+space.RestrictIndex(i-di, nx, true)]
				}
			}
			dst[j*nx+i] = sum
		}
	}
}

// FindConvolutionRadius returns the smallest radius r at which the Gaussian
// kernel value exp(-2r²/(4·tickTime·D·cellArea)) no longer exceeds
// tolerance, clamped to [minRadius, maxRadius]. A negative maxRadius is
// unbounded. A zero coefficient, tick time or area yields radius 0 before
// clamping.
func FindConvolutionRadius(coefficient, tickTime, cellArea, tolerance float64, minRadius, maxRadius int) (int, error) {
	r := 0
	denom := 4 * tickTime * coefficient * cellArea
	if denom > 0 {
		for math.Exp(-2*float64(r*r)/denom) > tolerance {
			r++
			if r > maxRadiusIterations {
				return 0, fmt.Errorf("%w: tolerance %g unreachable for D=%g t=%g", ErrRadiusNotFound, tolerance, coefficient, tickTime)
			}
		}
	}
	if r < minRadius {
		r = minRadius
	}
	if maxRadius >= 0 && r > maxRadius {
		r = maxRadius
	}
	return r, nil
}

// GaussianKernel evaluates exp(-(i²+j²)/(4·tickTime·D·cellArea)) over
// offsets in [-r, r] and normalizes the result to sum 1. A degenerate
// denominator yields the identity kernel.
func GaussianKernel(coefficient, tickTime, cellArea float64, r int) *mat.Dense {
	size := 2*r + 1
	k := mat.NewDense(size, size, nil)
	denom := 4 * tickTime * coefficient * cellArea
	if denom <= 0 {
		k.Set(r, r, 1)
		return k
	}
	for j := -r; j <= r; j++ {
		for i := -r; i <= r; i++ {
			k.Set(j+r, i+r, math.Exp(-float64(i*i+j*j)/denom))
		}
	}
	normalize(k)
	return k
}

// EmpiricalKernel runs steps direct diffusion passes with coefficient
// D/steps and no evaporation on a unit impulse, crops the spread to offsets
// in [-r, r] and normalizes it to sum 1. The impulse grid is wide enough that
// no mass wraps around within steps passes.
func EmpiricalKernel(coefficient float64, steps, r int) *mat.Dense {
	steps = max(steps, 1)
	half := max(steps, r) + 1
	n := 2*half + 1
	cur := make([]float64, n*n)
	next := make([]float64, n*n)
	cur[half*n+half] = 1
	c := coefficient / float64(steps)
	for s := 0; s < steps; s++ {
		diffuseStep(next, cur, n, n, c, 0)
		cur, next = next, cur
	}
	size := 2*r + 1
	k := mat.NewDense(size, size, nil)
	for j := 0; j < size; j++ {
		row := (half - r + j) * n
		for i := 0; i < size; i++ {
			k.Set(j, i, cur[row+half-r+i])
		}
	}
	normalize(k)
	return k
}

func normalize(k *mat.Dense) {
	raw := k.RawMatrix().Data
	if sum := floats.Sum(raw); sum > 0 {
		floats.Scale(1/sum, raw)
	}
}
