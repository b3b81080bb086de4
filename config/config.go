// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Space     SpaceConfig     `yaml:"space"`
	Layers    []LayerConfig   `yaml:"layers"`
	Agents    AgentsConfig    `yaml:"agents"`
	Run       RunConfig       `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SpaceConfig describes the simulation space.
type SpaceConfig struct {
	Name     string    `yaml:"name"`
	Kind     string    `yaml:"kind"` // standard | grid
	Min      []float64 `yaml:"min"`  // 2 or 3 values; the length sets the dimension
	Max      []float64 `yaml:"max"`
	Wrap     []bool    `yaml:"wrap"`
	MinCells int       `yaml:"min_cells"` // Hash grid resolution bounds per axis
	MaxCells int       `yaml:"max_cells"`
	Mode     string    `yaml:"mode"` // serial | concurrent | parallel
}

// LayerConfig describes one data layer attached to the space.
type LayerConfig struct {
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`  // grid | parallel | size | diffuse
	Cells   []int   `yaml:"cells"` // Cells per axis (defaults to 64 per axis)
	Initial float64 `yaml:"initial"`

	// Logistic regrowth toward Capacity applied by the step function.
	// Zero rate disables the step function.
	Regrowth float64 `yaml:"regrowth"`
	Capacity float64 `yaml:"capacity"`

	Noise     NoiseConfig     `yaml:"noise"`
	Diffusion DiffusionConfig `yaml:"diffusion"`
}

// NoiseConfig adds coherent noise in [0, Amplitude) on top of Initial.
type NoiseConfig struct {
	Amplitude float64 `yaml:"amplitude"` // 0 disables
	Scale     float64 `yaml:"scale"`     // Feature size in space units
	Seed      int64   `yaml:"seed"`
}

// DiffusionConfig holds the diffusion parameters of a diffuse layer.
type DiffusionConfig struct {
	Coefficient float64 `yaml:"coefficient"`
	Evaporation float64 `yaml:"evaporation"`
	UseGreen    bool    `yaml:"use_green"`
	Empirical   bool    `yaml:"empirical"`
	GreenSteps  int     `yaml:"green_steps"`
	TickTime    float64 `yaml:"tick_time"`
	Tolerance   float64 `yaml:"tolerance"`
	Radius      int     `yaml:"radius"`     // 0 = search
	MinRadius   int     `yaml:"min_radius"` // Search clamp
	MaxRadius   int     `yaml:"max_radius"` // Negative = unbounded
}

// AgentsConfig holds the random walker population parameters.
type AgentsConfig struct {
	Count       int     `yaml:"count"`
	MaxCount    int     `yaml:"max_count"`
	Radius      float64 `yaml:"radius"`
	Shape       string  `yaml:"shape"` // circle | square | square2
	Speed       float64 `yaml:"speed"`
	SenseRadius float64 `yaml:"sense_radius"`
	Layer       string  `yaml:"layer"`   // Layer walkers deposit into
	Deposit     float64 `yaml:"deposit"` // Amount deposited per tick
	Food        string  `yaml:"food"`    // Layer walkers graze and climb
	Consume     float64 `yaml:"consume"` // Amount grazed per tick
	BirthRate   float64 `yaml:"birth_rate"`
	DeathRate   float64 `yaml:"death_rate"`
	Crowding    int     `yaml:"crowding"` // Neighbours above which a walker dies
}

// RunConfig holds run control parameters.
type RunConfig struct {
	Seed        int64 `yaml:"seed"`
	MaxTicks    int   `yaml:"max_ticks"` // 0 = unlimited
	StatsWindow int   `yaml:"stats_window"`
	Workers     int   `yaml:"workers"` // 0 = GOMAXPROCS
}

// TelemetryConfig holds telemetry output parameters.
type TelemetryConfig struct {
	OutputDir        string `yaml:"output_dir"`
	SnapshotDir      string `yaml:"snapshot_dir"`
	SnapshotInterval int    `yaml:"snapshot_interval"` // Ticks between snapshots (0 = off)
	PerfWindow       int    `yaml:"perf_window"`
}

// MetricsConfig holds the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the endpoint
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	Dims       int
	Min, Max   [3]float64
	Wrap       [3]bool
	LayerIndex map[string]int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	dims := len(c.Space.Min)
	if dims != 2 && dims != 3 {
		return fmt.Errorf("space.min: want 2 or 3 values, got %d", dims)
	}
	if len(c.Space.Max) != dims {
		return fmt.Errorf("space.max: want %d values, got %d", dims, len(c.Space.Max))
	}
	c.Derived.Dims = dims
	c.Derived.Min, c.Derived.Max, c.Derived.Wrap = [3]float64{}, [3]float64{}, [3]bool{}
	copy(c.Derived.Min[:], c.Space.Min)
	copy(c.Derived.Max[:], c.Space.Max)
	copy(c.Derived.Wrap[:], c.Space.Wrap)

	c.Derived.LayerIndex = make(map[string]int, len(c.Layers))
	for i := range c.Layers {
		l := &c.Layers[i]
		if l.Kind == "" {
			l.Kind = "grid"
		}
		if len(l.Cells) == 0 {
			l.Cells = make([]int, dims)
			for a := range l.Cells {
				l.Cells[a] = 64
			}
		}
		if len(l.Cells) != dims {
			return fmt.Errorf("layers[%d] %q: want %d cell counts, got %d", i, l.Name, dims, len(l.Cells))
		}
		if _, dup := c.Derived.LayerIndex[l.Name]; dup {
			return fmt.Errorf("layers[%d]: duplicate name %q", i, l.Name)
		}
		c.Derived.LayerIndex[l.Name] = i
	}

	if c.Agents.MaxCount == 0 {
		c.Agents.MaxCount = c.Agents.Count * 4
	}
	if c.Run.StatsWindow <= 0 {
		c.Run.StatsWindow = 100
	}
	if c.Telemetry.PerfWindow <= 0 {
		c.Telemetry.PerfWindow = c.Run.StatsWindow
	}
	return nil
}

// Layer returns the named layer config, or nil.
func (c *Config) Layer(name string) *LayerConfig {
	i, ok := c.Derived.LayerIndex[name]
	if !ok {
		return nil
	}
	return &c.Layers[i]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
