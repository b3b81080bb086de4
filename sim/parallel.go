package sim

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/spark/space"
)

// parallelThreshold is the minimum walker count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// walkerSnapshot is the read-only view of one walker for the compute phase.
// Random draws are taken when it is built, single-threaded, so results do
// not depend on how walkers are split across workers.
type walkerSnapshot struct {
	Entity  ecs.Entity
	Node    *space.Node
	Heading float64
	Speed   float64
	Sense   float64
	Deposit float64
	Consume float64

	Turn      float64
	BirthRoll float64
	DeathRoll float64
}

// intent is the compute phase output for one walker.
type intent struct {
	Heading    float64
	Neighbours int
}

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Neighbors []any
}

// rangeFunc processes walkers [i0, i1) with the scratch of one worker.
type rangeFunc func(i0, i1 int, scratch *workerScratch)

type job struct {
	i0, i1 int
	fn     rangeFunc
	done   *sync.WaitGroup
}

// workerPool runs index ranges on persistent goroutines, one scratch
// buffer per goroutine. Goroutines start on first use.
type workerPool struct {
	size      int
	scratches []workerScratch
	jobs      chan job
	wg        sync.WaitGroup
	running   bool
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	scratches := make([]workerScratch, size)
	for i := range scratches {
		scratches[i].Neighbors = make([]any, 0, 64)
	}
	return &workerPool{size: size, scratches: scratches}
}

func (p *workerPool) start() {
	p.jobs = make(chan job, p.size)
	p.running = true
	for w := 0; w < p.size; w++ {
		p.wg.Add(1)
		go func(scratch *workerScratch) {
			defer p.wg.Done()
			for j := range p.jobs {
				j.fn(j.i0, j.i1, scratch)
				j.done.Done()
			}
		}(&p.scratches[w])
	}
}

// run splits [0, n) into one contiguous chunk per worker and blocks until
// every chunk is processed.
func (p *workerPool) run(n int, fn rangeFunc) {
	if !p.running {
		p.start()
	}
	chunk := (n + p.size - 1) / p.size
	var done sync.WaitGroup
	for i0 := 0; i0 < n; i0 += chunk {
		done.Add(1)
		p.jobs <- job{i0: i0, i1: min(i0+chunk, n), fn: fn, done: &done}
	}
	done.Wait()
}

// stop ends the worker goroutines. The pool restarts on the next run.
func (p *workerPool) stop() {
	if !p.running {
		return
	}
	close(p.jobs)
	p.wg.Wait()
	p.running = false
}

// stepBuffers holds the per-tick snapshot and intent slices, reused
// across ticks.
type stepBuffers struct {
	snapshots []walkerSnapshot
	intents   []intent
}

func (b *stepBuffers) reset() {
	b.snapshots = b.snapshots[:0]
}

// sizeIntents makes intents the same length as snapshots.
func (b *stepBuffers) sizeIntents() int {
	n := len(b.snapshots)
	if cap(b.intents) < n {
		b.intents = make([]intent, n)
	}
	b.intents = b.intents[:n]
	return n
}
