package telemetry

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		RNGSeed: 42,
		Tick:    1000,
		Space: SpaceState{
			Name: "world",
			Dims: 2,
			Max:  [3]float64{100, 100, 0},
			Wrap: [3]bool{true, true, false},
		},
		Layers: []LayerState{{Name: "food", Kind: "size"}, {Name: "scent", Kind: "diffuse"}},
		Walkers: []WalkerState{
			{ID: 1, Generation: 0, Heading: 1.2, Grazed: 0.75},
			{ID: 7, ParentID: 1, Generation: 1, BirthTick: 900, Heading: -0.5},
		},
		Bookmark: &Bookmark{Type: BookmarkBirthSurge, Tick: 1000, Description: "Test bookmark"},
	}

	nodes := []byte{1, 2, 3, 4}
	food := []byte("food payload")
	scent := []byte("scent payload")
	path, err := SaveSnapshot(snapshot, tmpDir, bytes.NewReader(nodes), map[string]io.WriterTo{
		"food":  bytes.NewReader(food),
		"scent": bytes.NewReader(scent),
	})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Version != SnapshotVersion || loaded.RNGSeed != 42 || loaded.Tick != 1000 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if loaded.Space != snapshot.Space {
		t.Errorf("space mismatch: got %+v, want %+v", loaded.Space, snapshot.Space)
	}
	if len(loaded.Walkers) != 2 || loaded.Walkers[1] != snapshot.Walkers[1] {
		t.Errorf("walkers mismatch: %+v", loaded.Walkers)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkBirthSurge {
		t.Error("bookmark not loaded")
	}
	if loaded.Dir() != path {
		t.Errorf("Dir = %q, want %q", loaded.Dir(), path)
	}

	check := func(file string, want []byte) {
		t.Helper()
		f, err := loaded.Open(file)
		if err != nil {
			t.Fatalf("Open(%s): %v", file, err)
		}
		defer f.Close()
		got, err := io.ReadAll(f)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: got %q, want %q", file, got, want)
		}
	}
	check(loaded.Nodes, nodes)
	check(loaded.Layers[0].File, food)
	check(loaded.Layers[1].File, scent)
}

func TestSnapshotDirName(t *testing.T) {
	tmpDir := t.TempDir()
	empty := bytes.NewReader(nil)

	path, err := SaveSnapshot(&Snapshot{
		Tick:     5000,
		Bookmark: &Bookmark{Type: BookmarkPopulationCrash, Tick: 5000},
	}, tmpDir, empty, nil)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_5000_population_crash"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}

	path, err = SaveSnapshot(&Snapshot{Tick: 3000}, tmpDir, empty, nil)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_3000"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}
	if _, err := os.Stat(filepath.Join(path, "manifest.json")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestSnapshotMissingLayerPayload(t *testing.T) {
	snapshot := &Snapshot{Tick: 1, Layers: []LayerState{{Name: "food"}}}
	if _, err := SaveSnapshot(snapshot, t.TempDir(), bytes.NewReader(nil), nil); err == nil {
		t.Error("expected error for layer without payload")
	}
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(dir); err == nil {
		t.Error("expected error for unknown version")
	}
}
