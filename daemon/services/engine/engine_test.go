package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

type fakeStorage struct {
	rules []dto.RuleConfig
}

func (f *fakeStorage) GetAllRules() []dto.RuleConfig { return f.rules }

func (f *fakeStorage) GetRulesForApplication(programName string) []dto.RuleConfig {
	var out []dto.RuleConfig
	for _, r := range f.rules {
		if r.ProgramName == programName {
			out = append(out, r)
		}
	}
	return out
}

type collectingSink struct {
	mu     sync.Mutex
	alarms []dto.AlarmMessage
}

func (s *collectingSink) Dispatch(alarm dto.AlarmMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms = append(s.alarms, alarm)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestAnalyzerEngine_AutoCreatesAnalyzerAndTriggers(t *testing.T) {
	storage := &fakeStorage{}
	sink := &collectingSink{}
	e := NewAnalyzerEngine(storage, sink)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error starting engine: %v", err)
	}
	defer e.Stop()

	// Rules appear only after Start, so X is created on its first event
	// and the registry's factory installs this rule at that moment.
	storage.rules = []dto.RuleConfig{
		{
			Kind:          dto.RuleKindThresholdWithinWindow,
			RuleName:      "fail3",
			ProgramName:   "X",
			OperationName: "pay",
			AlarmLevel:    dto.AlarmHigh,
			Threshold:     3,
			WindowSeconds: 60,
			PredicateExpr: "Failed == true",
		},
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		evt := dto.SystemEvent{ApplicationName: "X", OperationName: "pay", Success: false, Timestamp: now.Add(time.Duration(i) * 10 * time.Second)}
		if err := e.Enqueue(evt); err != nil {
			t.Fatalf("unexpected error enqueuing: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })

	analyzers := e.ListAnalyzers()
	if len(analyzers) != 1 || analyzers[0].ProgramName != "X" {
		t.Fatalf("expected auto-created analyzer for X, got %+v", analyzers)
	}
}

func TestAnalyzerEngine_StartPreCreatesAnalyzersForPreloadedRules(t *testing.T) {
	storage := &fakeStorage{rules: []dto.RuleConfig{
		{Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r1", ProgramName: "X", Threshold: 1, WindowSeconds: 60},
		{Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r2", ProgramName: "X", Threshold: 1, WindowSeconds: 60},
		{Kind: dto.RuleKindTimeBetweenOperations, RuleName: "r3", ProgramName: "Y", MaxGapSeconds: 60},
	}}
	e := NewAnalyzerEngine(storage, &collectingSink{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error starting engine: %v", err)
	}
	defer e.Stop()

	analyzers := e.ListAnalyzers()
	if len(analyzers) != 2 {
		t.Fatalf("expected analyzers pre-created for X and Y with no events ingested, got %+v", analyzers)
	}
	seen := map[string]bool{}
	for _, a := range analyzers {
		seen[a.ProgramName] = true
	}
	if !seen["X"] || !seen["Y"] {
		t.Fatalf("expected both X and Y pre-created, got %+v", analyzers)
	}
}

func TestAnalyzerEngine_ReloadRulesCreatesMissingAnalyzer(t *testing.T) {
	storage := &fakeStorage{rules: []dto.RuleConfig{
		{Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r", ProgramName: "Z", Threshold: 1, WindowSeconds: 60},
	}}
	e := NewAnalyzerEngine(storage, &collectingSink{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error starting engine: %v", err)
	}
	defer e.Stop()

	storage.rules = append(storage.rules, dto.RuleConfig{
		Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r2", ProgramName: "NEW", Threshold: 1, WindowSeconds: 60,
	})
	e.ReloadRules("NEW")

	waitFor(t, time.Second, func() bool {
		for _, a := range e.ListAnalyzers() {
			if a.ProgramName == "NEW" {
				return true
			}
		}
		return false
	})
}

// panickingStorage panics when asked for rules belonging to a specific
// program, simulating a corrupt RuleStorage so the EngineFault path in
// dispatchLoop can be exercised without a real fault source.
type panickingStorage struct {
	panicProgram string
}

func (s *panickingStorage) GetAllRules() []dto.RuleConfig { return nil }

func (s *panickingStorage) GetRulesForApplication(programName string) []dto.RuleConfig {
	if programName == s.panicProgram {
		panic("storage fault")
	}
	return nil
}

func TestAnalyzerEngine_FaultRoutingEventStopsEngine(t *testing.T) {
	storage := &panickingStorage{panicProgram: "BAD"}
	sink := &collectingSink{}
	e := NewAnalyzerEngine(storage, sink)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error starting engine: %v", err)
	}
	defer e.Stop()

	if err := e.Enqueue(dto.SystemEvent{ApplicationName: "BAD", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error enqueuing: %v", err)
	}

	waitFor(t, time.Second, func() bool { return e.State() == dto.Stopped })
	waitFor(t, time.Second, func() bool { return sink.count() == 1 })
	if sink.alarms[0].Level != dto.AlarmMedium {
		t.Fatalf("expected Medium alarm for an engine fault, got %v", sink.alarms[0].Level)
	}
}

func TestAnalyzerEngine_EnqueueRejectedWhenNotRunning(t *testing.T) {
	e := NewAnalyzerEngine(&fakeStorage{}, &collectingSink{})
	if err := e.Enqueue(dto.SystemEvent{ApplicationName: "X"}); err != ErrEngineNotRunning {
		t.Fatalf("expected ErrEngineNotRunning, got %v", err)
	}
}

func TestAnalyzerEngine_StopDrainsBeforeStopped(t *testing.T) {
	storage := &fakeStorage{rules: []dto.RuleConfig{
		{Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r", ProgramName: "X", Threshold: 1, WindowSeconds: 60},
	}}
	sink := &collectingSink{}
	e := NewAnalyzerEngine(storage, sink, WithShutdownGrace(2*time.Second))
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.Enqueue(dto.SystemEvent{ApplicationName: "X", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Stop()

	if e.State() != dto.Stopped {
		t.Fatalf("expected Stopped after Stop, got %v", e.State())
	}
	if sink.count() != 1 {
		t.Fatalf("expected queued event processed before shutdown completed, got %d alarms", sink.count())
	}
}

func TestAnalyzerEngine_ReloadRulesRebuildsRuleSet(t *testing.T) {
	storage := &fakeStorage{}
	sink := &collectingSink{}
	e := NewAnalyzerEngine(storage, sink)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Stop()

	if err := e.Enqueue(dto.SystemEvent{ApplicationName: "X", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(e.ListAnalyzers()) == 1 })

	storage.rules = []dto.RuleConfig{
		{Kind: dto.RuleKindThresholdWithinWindow, RuleName: "r", ProgramName: "X", Threshold: 1, WindowSeconds: 60},
	}
	e.ReloadRules("X")

	if err := e.Enqueue(dto.SystemEvent{ApplicationName: "X", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return sink.count() == 1 })
}
