package sim

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/field"
	"github.com/pthm-cable/spark/space"
)

// loadConfig merges yaml over the embedded defaults.
func loadConfig(t testing.TB, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestModelRegistry(t *testing.T) {
	m := NewModel()
	a := space.MustNew(space.Options{Name: "a", Topology: space.NewTopology2D(0, 10, 0, 10, false, false)})
	if err := m.AddSpace(a); err != nil {
		t.Fatalf("AddSpace: %v", err)
	}
	dup := space.MustNew(space.Options{Name: "a", Topology: space.NewTopology2D(0, 5, 0, 5, false, false)})
	if err := m.AddSpace(dup); !errors.Is(err, space.ErrConfig) {
		t.Errorf("duplicate name: expected ErrConfig, got %v", err)
	}
	if len(m.Spaces()) != 1 || m.Space("a") != a {
		t.Fatal("expected exactly the first space to be registered")
	}

	g := field.MustNewGrid("heat", a, 10, 10)
	g.Fill(2)
	a.MustAddDataLayer(g)

	if v, ok := m.ValueAt("a", "heat", space.Vec2(3, 3)); !ok || v != 2 {
		t.Errorf("ValueAt = %f, %v; want 2, true", v, ok)
	}

	tests := []struct {
		name         string
		space, layer string
	}{
		{"unknown space", "b", "heat"},
		{"unknown layer", "a", "cold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m.DataLayer(tt.space, tt.layer) != nil {
				t.Error("expected nil layer")
			}
			if _, ok := m.ValueAt(tt.space, tt.layer, space.Vec2(1, 1)); ok {
				t.Error("expected ok=false")
			}
		})
	}

	if m.Space("b") != nil || m.Agents("b", space.Vec2(1, 1), 5) != nil {
		t.Error("expected nil results for an unknown space")
	}
}

func TestModelProcessNodesSumsSpaces(t *testing.T) {
	m := NewModel()
	for _, name := range []string{"a", "b"} {
		s := space.MustNew(space.Options{
			Name:     name,
			Topology: space.NewTopology2D(0, 10, 0, 10, true, true),
			Mode:     space.Concurrent,
		})
		if err := m.AddSpace(s); err != nil {
			t.Fatal(err)
		}
	}
	m.EndSetup()
	for _, s := range m.Spaces() {
		s.CreateNode(space.Circle, 0.5, space.Vec2(1, 1), s.Name())
		s.CreateNode(space.Circle, 0.5, space.Vec2(2, 2), s.Name())
	}
	st := m.ProcessNodes()
	if st.Created != 4 {
		t.Errorf("expected 4 creations across spaces, got %+v", st)
	}
	if got := len(m.Agents("b", space.Vec2(1.5, 1.5), 2)); got != 2 {
		t.Errorf("expected 2 agents in b, got %d", got)
	}
}

func TestBuildModelDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	m, s, err := BuildModel(cfg)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if m.Space(cfg.Space.Name) != s {
		t.Fatal("space not registered under its configured name")
	}
	if s.Mode() != space.Parallel || s.Topology().Dims != 2 {
		t.Errorf("unexpected space mode %v dims %d", s.Mode(), s.Topology().Dims)
	}

	food, ok := s.DataLayer("food").(*field.SizeGrid)
	if !ok {
		t.Fatalf("food layer is %T, want *field.SizeGrid", s.DataLayer("food"))
	}
	if food.Total() != 2500 {
		t.Errorf("expected initial food total 2500, got %f", food.Total())
	}
	scent, ok := s.DataLayer("scent").(*field.Diffuse)
	if !ok {
		t.Fatalf("scent layer is %T, want *field.Diffuse", s.DataLayer("scent"))
	}
	if scent.Kernel() == nil {
		t.Error("expected a Green's function kernel on scent")
	}
}

func TestBuildLayerErrors(t *testing.T) {
	s3 := space.MustNew(space.Options{
		Name:     "cube",
		Topology: space.NewTopology3D(space.Vec3(0, 0, 0), space.Vec3(10, 10, 10), false, false, false),
	})
	tests := []struct {
		name string
		lc   config.LayerConfig
	}{
		{"diffuse in 3D", config.LayerConfig{Name: "d", Kind: "diffuse", Cells: []int{4, 4, 4}, Diffusion: config.DiffusionConfig{Coefficient: 0.1}}},
		{"unknown kind", config.LayerConfig{Name: "x", Kind: "voxel", Cells: []int{4, 4, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildLayer(s3, &tt.lc); !errors.Is(err, field.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
	if len(s3.DataLayers()) != 0 {
		t.Error("failed layers must not be attached")
	}

	lc := config.LayerConfig{Name: "v", Kind: "size", Cells: []int{2, 2, 2}, Initial: 0.5}
	l, err := BuildLayer(s3, &lc)
	if err != nil {
		t.Fatalf("BuildLayer: %v", err)
	}
	if got := l.(*field.SizeGrid).Total(); got != 4 {
		t.Errorf("expected 8 cells of 0.5, got total %f", got)
	}
	if _, err := BuildLayer(s3, &lc); err == nil {
		t.Error("expected an error attaching a duplicate layer name")
	}
}

func TestBuildLayerNoise(t *testing.T) {
	build := func() *field.Grid {
		s := space.MustNew(space.Options{Name: "w", Topology: space.NewTopology2D(0, 20, 0, 20, true, true)})
		lc := config.LayerConfig{
			Name:    "food",
			Kind:    "grid",
			Cells:   []int{10, 10},
			Initial: 0.5,
			Noise:   config.NoiseConfig{Amplitude: 1, Scale: 5, Seed: 3},
		}
		l, err := BuildLayer(s, &lc)
		if err != nil {
			t.Fatalf("BuildLayer: %v", err)
		}
		return l.(*field.Grid)
	}

	a, b := build(), build()
	st := a.Stats()
	if st.Min < 0.5 || st.Max >= 1.5 || st.Max == st.Min {
		t.Errorf("noise fill outside [0.5, 1.5) or flat: %+v", st)
	}
	for i, v := range a.Data() {
		if b.Data()[i] != v {
			t.Fatalf("cell %d differs for the same seed: %f vs %f", i, v, b.Data()[i])
		}
	}
}

func TestLogisticRegrowth(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		capacity float64
		old      float64
		want     float64
	}{
		{"grows toward capacity", 0.5, 2, 1, 1.25},
		{"negative clamps to zero", 0.5, 2, -1, 0},
		{"above capacity clamps", 0.5, 2, 3, 2},
		{"empty cell stays empty", 0.5, 2, 0, 0},
		{"default capacity", 1, 0, 0.5, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := logisticRegrowth(tt.rate, tt.capacity)(1, space.Vector{}, tt.old)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}
