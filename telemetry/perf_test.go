package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCommit)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseAgents)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if stats.PhaseAvg[PhaseCommit] <= 0 || stats.PhaseAvg[PhaseAgents] <= 0 {
		t.Errorf("expected commit and agents phases to be tracked: %v", stats.PhaseAvg)
	}
	if stats.PhaseAvg[PhaseApply] != 0 {
		t.Error("apply phase never ran")
	}
	if stats.MinTickDuration > stats.P95TickDuration || stats.P95TickDuration > stats.MaxTickDuration {
		t.Errorf("expected min <= p95 <= max, got %v %v %v", stats.MinTickDuration, stats.P95TickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollectorRollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCommit)
		time.Sleep(10 * time.Microsecond)
		pc.EndTick()
	}
	if pc.count != 5 {
		t.Errorf("expected 5 samples in the window, got %d", pc.count)
	}
	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 || stats.TicksPerSecond <= 0 {
		t.Errorf("expected positive timing after the window filled: %+v", stats)
	}
}

func TestPerfCollectorPhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseBeginStep)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseDataLayers)
		time.Sleep(500 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	fast, slow := stats.PhasePct[PhaseBeginStep], stats.PhasePct[PhaseDataLayers]
	if slow <= fast {
		t.Errorf("expected data_layers (%v%%) > begin_step (%v%%)", slow, fast)
	}
	if slow > 100 {
		t.Errorf("phase share above 100%%: %v", slow)
	}
}

func TestPerfCollectorEmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("expected zero stats for an empty collector, got %+v", stats)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		ph   Phase
		want string
	}{
		{PhaseBeginStep, "begin_step"},
		{PhaseCommit, "commit"},
		{PhaseTelemetry, "telemetry"},
		{numPhases, "unknown"},
		{-1, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.ph.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.ph), got, tt.want)
		}
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	var s PerfStats
	s.AvgTickDuration = 2 * time.Millisecond
	s.P95TickDuration = 3 * time.Millisecond
	s.PhasePct[PhaseAgents] = 60
	s.PhasePct[PhaseCommit] = 25

	row := s.ToCSV(500)
	if row.WindowEnd != 500 || row.AvgTickUS != 2000 || row.P95TickUS != 3000 {
		t.Errorf("unexpected row %+v", row)
	}
	if row.AgentsPct != 60 || row.CommitPct != 25 || row.DataLayersPct != 0 {
		t.Errorf("phase percentages not mapped: %+v", row)
	}
}
