package sim

import (
	"fmt"
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/field"
	"github.com/pthm-cable/spark/space"
)

// BuildSpace creates the configured space.
func BuildSpace(cfg *config.Config) (*space.Space, error) {
	kind, err := space.ParseKind(cfg.Space.Kind)
	if err != nil {
		return nil, err
	}
	mode, err := space.ParseMode(cfg.Space.Mode)
	if err != nil {
		return nil, err
	}

	d := cfg.Derived
	var topo space.Topology
	if d.Dims == 2 {
		topo = space.NewTopology2D(d.Min[0], d.Max[0], d.Min[1], d.Max[1], d.Wrap[0], d.Wrap[1])
	} else {
		topo = space.NewTopology3D(
			space.Vec3(d.Min[0], d.Min[1], d.Min[2]),
			space.Vec3(d.Max[0], d.Max[1], d.Max[2]),
			d.Wrap[0], d.Wrap[1], d.Wrap[2],
		)
	}

	return space.New(space.Options{
		Name:     cfg.Space.Name,
		Kind:     kind,
		Topology: topo,
		Mode:     mode,
		MinCells: cfg.Space.MinCells,
		MaxCells: cfg.Space.MaxCells,
	})
}

// stepper is implemented by every field layer.
type stepper interface {
	space.DataLayer
	Fill(v float64)
	SetFunc(fn func(space.Vector) float64)
	SetStepFunc(fn field.StepFunc)
}

// BuildLayer creates one configured layer on s and attaches it.
func BuildLayer(s *space.Space, lc *config.LayerConfig) (space.DataLayer, error) {
	dims := s.Topology().Dims
	c := lc.Cells
	nz := 1
	if dims == 3 {
		nz = c[2]
	}

	var (
		l   stepper
		err error
	)
	switch lc.Kind {
	case "grid":
		l, err = field.NewGrid3(lc.Name, s, c[0], c[1], nz)
	case "parallel":
		l, err = field.NewParallelGrid3(lc.Name, s, c[0], c[1], nz)
	case "size":
		l, err = field.NewSizeGrid3(lc.Name, s, c[0], c[1], nz)
	case "diffuse":
		if dims != 2 {
			return nil, fmt.Errorf("%w: diffuse layer %q needs a 2D space", field.ErrConfig, lc.Name)
		}
		l, err = field.NewDiffuse(lc.Name, s, c[0], c[1], diffusionParams(lc.Diffusion))
	default:
		return nil, fmt.Errorf("%w: layer %q has unknown kind %q", field.ErrConfig, lc.Name, lc.Kind)
	}
	if err != nil {
		return nil, err
	}

	if lc.Noise.Amplitude != 0 {
		l.SetFunc(noiseFill(lc.Initial, lc.Noise))
	} else {
		l.Fill(lc.Initial)
	}
	if lc.Regrowth > 0 {
		l.SetStepFunc(logisticRegrowth(lc.Regrowth, lc.Capacity))
	}
	if err := s.AddDataLayer(l); err != nil {
		return nil, err
	}
	return l, nil
}

func diffusionParams(dc config.DiffusionConfig) field.DiffusionParams {
	return field.DiffusionParams{
		Coefficient: dc.Coefficient,
		Evaporation: dc.Evaporation,
		UseGreen:    dc.UseGreen,
		Empirical:   dc.Empirical,
		GreenSteps:  dc.GreenSteps,
		TickTime:    dc.TickTime,
		Tolerance:   dc.Tolerance,
		Radius:      dc.Radius,
		MinRadius:   dc.MinRadius,
		MaxRadius:   dc.MaxRadius,
	}
}

// noiseFill returns base plus normalized simplex noise scaled by the
// amplitude. A non-positive scale defaults to 10 space units.
func noiseFill(base float64, nc config.NoiseConfig) func(space.Vector) float64 {
	scale := nc.Scale
	if scale <= 0 {
		scale = 10
	}
	noise := opensimplex.NewNormalized(nc.Seed)
	return func(p space.Vector) float64 {
		return base + nc.Amplitude*noise.Eval3(p.X/scale, p.Y/scale, p.Z/scale)
	}
}

// logisticRegrowth grows each cell toward capacity; a non-positive capacity
// defaults to 1. Values are kept in [0, capacity].
func logisticRegrowth(rate, capacity float64) field.StepFunc {
	if capacity <= 0 {
		capacity = 1
	}
	return func(_ int64, _ space.Vector, old float64) float64 {
		v := math.Max(old, 0)
		v += rate * v * (1 - v/capacity)
		return math.Min(v, capacity)
	}
}

// BuildModel creates the configured space with all of its layers and
// registers it in a new model.
func BuildModel(cfg *config.Config) (*Model, *space.Space, error) {
	s, err := BuildSpace(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building space: %w", err)
	}
	for i := range cfg.Layers {
		if _, err := BuildLayer(s, &cfg.Layers[i]); err != nil {
			return nil, nil, fmt.Errorf("building layer %q: %w", cfg.Layers[i].Name, err)
		}
	}
	m := NewModel()
	if err := m.AddSpace(s); err != nil {
		return nil, nil, err
	}
	return m, s, nil
}
