package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

const (
	manifestFile = "manifest.json"
	nodesFile    = "nodes.bin"
)

// Snapshot is the JSON manifest of a saved simulation state. Node and layer
// contents live in binary payload files next to it.
type Snapshot struct {
	Version int    `json:"version"`
	RNGSeed int64  `json:"rng_seed"`
	Tick    int64  `json:"tick"`
	NextID  uint32 `json:"next_id"` // Last organism ID issued

	Space  SpaceState   `json:"space"`
	Nodes  string       `json:"nodes"`
	Layers []LayerState `json:"layers"`

	// Walkers are listed in the same order as the node records.
	Walkers []WalkerState `json:"walkers"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`

	dir string
}

// SpaceState describes the space the nodes were saved from.
type SpaceState struct {
	Name string     `json:"name"`
	Dims int        `json:"dims"`
	Min  [3]float64 `json:"min"`
	Max  [3]float64 `json:"max"`
	Wrap [3]bool    `json:"wrap"`
}

// LayerState names one data layer payload.
type LayerState struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
}

// WalkerState holds one walker's ECS state.
type WalkerState struct {
	ID         uint32  `json:"id"`
	ParentID   uint32  `json:"parent_id,omitempty"`
	Generation uint32  `json:"generation"`
	BirthTick  int64   `json:"birth_tick"`
	Heading    float64 `json:"heading"`
	Grazed     float64 `json:"grazed"`
}

// Dir returns the directory a loaded snapshot was read from.
func (s *Snapshot) Dir() string { return s.dir }

// Open opens a payload file of a loaded snapshot.
func (s *Snapshot) Open(file string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		return nil, fmt.Errorf("open snapshot payload: %w", err)
	}
	return f, nil
}

// SaveSnapshot writes the manifest and payloads into a new directory under
// dir. layers maps a layer name in snapshot.Layers to its contents.
// Returns the snapshot directory.
func SaveSnapshot(snapshot *Snapshot, dir string, nodes io.WriterTo, layers map[string]io.WriterTo) (string, error) {
	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	snapshot.Version = SnapshotVersion
	snapshot.Nodes = nodesFile
	if err := writePayload(filepath.Join(path, nodesFile), nodes); err != nil {
		return "", err
	}
	for i := range snapshot.Layers {
		l := &snapshot.Layers[i]
		w, ok := layers[l.Name]
		if !ok {
			return "", fmt.Errorf("snapshot layer %q: no payload", l.Name)
		}
		l.File = "layer_" + l.Name + ".bin"
		if err := writePayload(filepath.Join(path, l.File), w); err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, manifestFile), data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	snapshot.dir = path
	return path, nil
}

func writePayload(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create payload: %w", err)
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// LoadSnapshot reads the manifest of a snapshot directory.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(path, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	snapshot.dir = path
	return &snapshot, nil
}
