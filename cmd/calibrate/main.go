// Package main sweeps diffusion coefficients and Green's function step counts,
// fits an analytic Gaussian to each empirical kernel and reports how far the
// two strategies disagree.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/spark/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Config YAML file for cell geometry (empty = use defaults)")
	layer := flag.String("layer", "scent", "Diffuse layer whose cell area and tick time are used")
	dMin := flag.Float64("d-min", 0.1, "Smallest diffusion coefficient")
	dMax := flag.Float64("d-max", 1.0, "Largest diffusion coefficient")
	dCount := flag.Int("d-count", 10, "Number of coefficients in the sweep")
	stepsMin := flag.Int("steps-min", 1, "Smallest green step count")
	stepsMax := flag.Int("steps-max", 8, "Largest green step count")
	maxEvals := flag.Int("max-evals", 500, "Maximum Nelder-Mead evaluations per fit")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *stepsMin < 1 || *stepsMax < *stepsMin {
		log.Fatalf("invalid step range [%d, %d]", *stepsMin, *stepsMax)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lc := cfg.Layer(*layer)
	if lc == nil {
		log.Fatalf("layer %q not found in config", *layer)
	}
	d := cfg.Derived
	cellArea := (d.Max[0] - d.Min[0]) / float64(lc.Cells[0]) * (d.Max[1] - d.Min[1]) / float64(lc.Cells[1])

	tickTime := lc.Diffusion.TickTime
	if tickTime <= 0 {
		tickTime = 1
	}
	tolerance := lc.Diffusion.Tolerance
	if tolerance <= 0 {
		tolerance = 1e-3
	}

	sw := sweep{
		Coefficients: linspace(*dMin, *dMax, *dCount),
		TickTime:     tickTime,
		CellArea:     cellArea,
		Tolerance:    tolerance,
		MaxEvals:     *maxEvals,
	}
	for s := *stepsMin; s <= *stepsMax; s++ {
		sw.Steps = append(sw.Steps, s)
	}

	fmt.Printf("Calibrating layer %q: cell area %.4f, tick time %.3f, %d fits\n",
		*layer, cellArea, tickTime, len(sw.Coefficients)*len(sw.Steps))

	start := time.Now()
	rows, err := sw.run(func(i, total int, r row) {
		fmt.Printf("Fit %d/%d: D=%.3f steps=%d spread=%.4f ratio=%.3f residual=%.2e\n",
			i, total, r.Coefficient, r.GreenSteps, r.Spread, r.Ratio, r.Residual)
	})
	if err != nil {
		log.Printf("sweep ended early: %v", err)
	}

	outPath := filepath.Join(*outputDir, "calibration.csv")
	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", outPath, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}

	fmt.Printf("\nCalibration complete in %s, results saved to: %s\n", time.Since(start).Round(time.Millisecond), outPath)
}
