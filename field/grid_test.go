package field

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/spark/space"
)

func newSpace(t testing.TB, size float64, wrap bool) *space.Space {
	t.Helper()
	s, err := space.New(space.Options{
		Name:     "field-test",
		Topology: space.NewTopology2D(0, size, 0, size, wrap, wrap),
	})
	if err != nil {
		t.Fatalf("space.New: %v", err)
	}
	return s
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestGridMatchesHashGridBuckets(t *testing.T) {
	for _, wrap := range []bool{false, true} {
		s, err := space.New(space.Options{
			Kind:     space.Grid,
			Topology: space.NewTopology2D(0, 10, 0, 10, wrap, wrap),
		})
		if err != nil {
			t.Fatal(err)
		}
		g := MustNewGrid("g", s, 10, 10)
		rng := rand.New(rand.NewSource(3))
		for n := 0; n < 500; n++ {
			p := space.Vec2(rng.Float64()*14-2, rng.Float64()*14-2)
			if got, want := g.indexOf(p), s.HashGrid().Bucket(p); got != want {
				t.Fatalf("wrap=%v point %v: layer cell %d, hash bucket %d", wrap, p, got, want)
			}
		}
	}
}

func TestGridPointAccess(t *testing.T) {
	s := newSpace(t, 10, false)
	g := MustNewGrid("g", s, 5, 10)

	g.SetValue(space.Vec2(3.9, 7.2), 4)
	if got := g.At(1, 7, 0); got != 4 {
		t.Errorf("expected cell (1,7) = 4, got %f", got)
	}
	g.AddValue(space.Vec2(2.1, 7.9), 1.5)
	if got := g.Value(space.Vec2(3, 7.5)); got != 5.5 {
		t.Errorf("expected 5.5, got %f", got)
	}
	if g.FindX(10) != 4 || g.FindY(-1) != 0 {
		t.Errorf("expected clamped indices, got %d %d", g.FindX(10), g.FindY(-1))
	}
}

func TestGridSetFuncUsesCellCentres(t *testing.T) {
	s := newSpace(t, 10, false)
	g := MustNewGrid("g", s, 10, 5)
	g.SetFunc(func(p space.Vector) float64 { return p.X*100 + p.Y })

	if got := g.At(3, 1, 0); got != 353 {
		t.Errorf("expected 3.5*100+3, got %f", got)
	}
	geom := g.Geometry()
	if len(geom) != 50 || geom[g.index(3, 1, 0)] != space.Vec2(3.5, 3) {
		t.Errorf("unexpected geometry %v", geom[g.index(3, 1, 0)])
	}
}

func TestGridTotals(t *testing.T) {
	s := newSpace(t, 10, false)
	g := MustNewGrid("g", s, 10, 10)
	g.Fill(2)
	if g.Total() != 200 {
		t.Errorf("expected total 200, got %f", g.Total())
	}
	if got := g.TotalIn(space.Vec2(2.5, 2.5), space.Vec2(4.5, 3.5)); got != 12 {
		t.Errorf("expected 3x2 cells = 12, got %f", got)
	}
	if got := g.TotalIn(space.Vec2(-5, -5), space.Vec2(50, 0.5)); got != 20 {
		t.Errorf("expected clipped row total 20, got %f", got)
	}
}

func TestGridGradient(t *testing.T) {
	tests := []struct {
		name string
		wrap bool
		set  [][3]float64
		at   space.Vector
		want space.Vector
	}{
		{"east", false, [][3]float64{{5, 5, 1}, {6, 5, 3}, {4, 5, 2}}, space.Vec2(5.5, 5.5), space.Vec2(2, 0)},
		{"flat", false, nil, space.Vec2(5.5, 5.5), space.Vector{}},
		{"clamped edge ignores far side", false, [][3]float64{{9, 5, 5}}, space.Vec2(0.5, 5.5), space.Vector{}},
		{"wrapped edge sees far side", true, [][3]float64{{9, 5, 5}}, space.Vec2(0.5, 5.5), space.Vec2(-5, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := MustNewGrid("g", newSpace(t, 10, tt.wrap), 10, 10)
			for _, c := range tt.set {
				g.Set(int(c[0]), int(c[1]), 0, c[2])
			}
			got := g.Gradient(tt.at)
			if !approx(got.X, tt.want.X, 1e-12) || !approx(got.Y, tt.want.Y, 1e-12) {
				t.Errorf("Gradient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGridGradientDiagonal(t *testing.T) {
	g := MustNewGrid("g", newSpace(t, 10, false), 10, 10)
	g.Set(6, 6, 0, 2)
	got := g.Gradient(space.Vec2(5.5, 5.5))
	want := 2 / math.Sqrt2
	if !approx(got.X, want, 1e-12) || !approx(got.Y, want, 1e-12) {
		t.Errorf("expected diagonal (%f,%f), got %v", want, want, got)
	}
}

func TestGridStats(t *testing.T) {
	g := MustNewGrid("g", newSpace(t, 2, false), 2, 2)
	g.Set(0, 0, 0, 1)
	g.Set(1, 0, 0, 2)
	g.Set(0, 1, 0, 3)
	g.Set(1, 1, 0, 6)
	st := g.Stats()
	if st.Min != 1 || st.Max != 6 || st.Mean != 3 || st.Total != 12 {
		t.Errorf("unexpected stats %+v", st)
	}
	if !approx(st.StdDev, math.Sqrt(14.0/3), 1e-12) {
		t.Errorf("expected sample std dev, got %f", st.StdDev)
	}
}

func TestGridColors(t *testing.T) {
	g := MustNewGrid("g", newSpace(t, 2, false), 2, 1)
	g.Set(0, 0, 0, 2)
	g.Set(1, 0, 0, 3)

	cs := g.Colors(2, 2, space.Black, space.White)
	if cs[0] != space.Black || cs[1] != space.White {
		t.Errorf("degenerate range should widen to [2,3], got %v", cs)
	}
	cs = g.Colors(0, 4, space.Black, space.White)
	if !approx(cs[0].R, 0.5, 1e-12) || !approx(cs[1].R, 0.75, 1e-12) {
		t.Errorf("unexpected ramp %v", cs)
	}
	if g.At(0, 0, 0) != 2 {
		t.Error("colour mapping must not touch the data")
	}
}

func TestGridProcessStepFunc(t *testing.T) {
	g := MustNewGrid("g", newSpace(t, 4, false), 4, 4)
	g.Fill(1)
	g.SetStepFunc(func(tick int64, p space.Vector, old float64) float64 {
		return old*2 + float64(tick) + p.X
	})
	g.Process(3)
	if got := g.At(2, 1, 0); got != 2+3+2.5 {
		t.Errorf("expected 7.5, got %f", got)
	}
}

func TestNewGridRejectsBadConfig(t *testing.T) {
	s := newSpace(t, 10, false)
	if _, err := NewGrid3("g", s, 4, 4, 2); !errors.Is(err, ErrConfig) {
		t.Errorf("3D layer on 2D space: expected ErrConfig, got %v", err)
	}
	if _, err := NewGrid("g", s, 0, 4); !errors.Is(err, ErrConfig) {
		t.Errorf("empty layer: expected ErrConfig, got %v", err)
	}
	if _, err := NewGrid("g", nil, 4, 4); !errors.Is(err, ErrConfig) {
		t.Errorf("nil space: expected ErrConfig, got %v", err)
	}
}

func TestAttachLayer(t *testing.T) {
	s := newSpace(t, 10, false)
	other := newSpace(t, 10, false)

	g := MustNewGrid("food", s, 10, 10)
	if err := s.AddDataLayer(g); err != nil {
		t.Fatalf("AddDataLayer: %v", err)
	}
	if err := s.AddDataLayer(g); !errors.Is(err, space.ErrConfig) {
		t.Errorf("duplicate name: expected ErrConfig, got %v", err)
	}
	if err := other.AddDataLayer(MustNewGrid("x", s, 10, 10)); !errors.Is(err, space.ErrConfig) {
		t.Errorf("foreign layer: expected ErrConfig, got %v", err)
	}

	g.SetValue(space.Vec2(1, 1), 7)
	if v, ok := s.ValueAt("food", space.Vec2(1.5, 1.5)); !ok || v != 7 {
		t.Errorf("ValueAt = %f, %v", v, ok)
	}
	if s.DataLayer("missing") != nil {
		t.Error("expected nil for unknown layer")
	}
	if _, ok := s.ValueAt("missing", space.Vec2(1, 1)); ok {
		t.Error("expected miss for unknown layer")
	}

	gs, err := space.New(space.Options{Kind: space.Grid, Topology: space.NewTopology2D(0, 8, 0, 8, false, false)})
	if err != nil {
		t.Fatal(err)
	}
	if err := gs.AddDataLayer(MustNewGrid("bad", gs, 4, 8)); !errors.Is(err, space.ErrConfig) {
		t.Errorf("size mismatch on grid space: expected ErrConfig, got %v", err)
	}
	if err := gs.AddDataLayer(MustNewGrid("ok", gs, 8, 8)); err != nil {
		t.Errorf("matching size rejected: %v", err)
	}
}

func TestGrid3D(t *testing.T) {
	s, err := space.New(space.Options{
		Topology: space.NewTopology3D(space.Vec3(0, 0, 0), space.Vec3(4, 4, 4), false, false, true),
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGrid3("g", s, 4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	g.SetValue(space.Vec3(1.5, 2.5, 3.5), 9)
	if g.At(1, 2, 3) != 9 || g.FindZ(4.5) != 0 {
		t.Errorf("unexpected 3D indexing")
	}
	g.Set(1, 2, 0, 10)
	grad := g.Gradient(space.Vec3(1.5, 2.5, 3.5))
	if !approx(grad.Z, 1, 1e-12) || grad.X != 0 || grad.Y != 0 {
		t.Errorf("expected +z gradient across the wrap, got %v", grad)
	}
}

func BenchmarkGridGradient(b *testing.B) {
	g := MustNewGrid("g", newSpace(b, 100, true), 100, 100)
	g.SetFunc(func(p space.Vector) float64 { return math.Sin(p.X) * math.Cos(p.Y) })
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Gradient(space.Vec2(float64(i%100), 50))
	}
}
