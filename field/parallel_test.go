package field

import (
	"sync"
	"testing"

	"github.com/pthm-cable/spark/space"
)

func TestParallelGridCopyOnWrite(t *testing.T) {
	g, err := NewParallelGrid("p", newSpace(t, 10, true), 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	g.Fill(1)
	before := g.Snapshot()

	g.SetFunc(func(p space.Vector) float64 { return p.X })
	for i, v := range before {
		if v != 1 {
			t.Fatalf("captured array changed at %d: %f", i, v)
		}
	}
	if g.At(4, 0, 0) != 4.5 {
		t.Errorf("expected new array published, got %f", g.At(4, 0, 0))
	}

	captured := g.Snapshot()
	g.SetStepFunc(func(_ int64, _ space.Vector, old float64) float64 { return old * 10 })
	g.Process(1)
	if captured[4] != 4.5 {
		t.Errorf("Process must not modify a captured array, got %f", captured[4])
	}
	if g.At(4, 0, 0) != 45 {
		t.Errorf("expected processed value 45, got %f", g.At(4, 0, 0))
	}
}

func TestParallelGridStepBuffer(t *testing.T) {
	g, err := NewParallelGrid("p", newSpace(t, 10, false), 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	p := space.Vec2(2.5, 2.5)

	g.BeginStep()
	g.AddValue(p, 3)
	if g.Value(p) != 0 {
		t.Errorf("mid-step writes must not be visible, got %f", g.Value(p))
	}
	g.EndStep()
	if g.Value(p) != 3 {
		t.Errorf("expected 3 after EndStep, got %f", g.Value(p))
	}

	g.SetValue(p, 5)
	if g.Value(p) != 5 {
		t.Errorf("writes outside a step apply directly, got %f", g.Value(p))
	}
}

func TestParallelGridConcurrentWrites(t *testing.T) {
	g, err := NewParallelGrid("p", newSpace(t, 10, false), 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	const workers, writes = 8, 500
	g.BeginStep()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				g.AddValue(space.Vec2(float64(i%10), float64(w)), 1)
				_ = g.Value(space.Vec2(5, 5))
			}
		}(w)
	}
	wg.Wait()
	g.EndStep()

	if g.Total() != workers*writes {
		t.Errorf("expected total %d, got %f", workers*writes, g.Total())
	}
}
