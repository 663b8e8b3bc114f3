// Package engine implements the AnalyzerEngine: the top-level lifecycle
// owner that ingests SystemEvents, routes them to per-program analyzers,
// and loads rule definitions from a RuleStorage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
	"github.com/ruaan-deysel/eventwatch/daemon/services/analyzer"
	"github.com/ruaan-deysel/eventwatch/daemon/services/rules"
)

// ErrEngineNotRunning is returned by Enqueue when the engine is not in the
// Running state.
var ErrEngineNotRunning = errors.New("engine is not running")

// RuleStorage is the external contract the engine loads rule definitions
// from.
type RuleStorage interface {
	GetAllRules() []dto.RuleConfig
	GetRulesForApplication(programName string) []dto.RuleConfig
}

// AlarmSink receives AlarmMessages raised by triggered rules.
type AlarmSink interface {
	Dispatch(alarm dto.AlarmMessage)
}

// defaultMaxEngineMessages bounds the in-memory EngineMessage history.
const defaultMaxEngineMessages = 200

// defaultIngestQueueCapacity bounds the engine's ingest queue when the
// caller does not specify one.
const defaultIngestQueueCapacity = 1024

// defaultShutdownGrace bounds how long stop() waits for analyzers to
// drain before giving up and transitioning to Stopped anyway.
const defaultShutdownGrace = 10 * time.Second

// AnalyzerEngine is the top-level lifecycle owner of the analysis
// pipeline: it owns the ingest queue, the AnalyzerRegistry, and the
// dispatch loop that routes each SystemEvent to its program's analyzer.
type AnalyzerEngine struct {
	ruleStorage           RuleStorage
	alarmSink             AlarmSink
	queueCapacity         int
	analyzerQueueCapacity int
	shutdownGrace         time.Duration

	mu       sync.Mutex
	state    dto.State
	registry *analyzer.AnalyzerRegistry
	ingest   chan dto.SystemEvent
	cancel   context.CancelFunc
	done     chan struct{}

	msgMu    sync.Mutex
	messages []dto.EngineMessage
}

// Option configures an AnalyzerEngine at construction time.
type Option func(*AnalyzerEngine)

// WithIngestQueueCapacity sets the capacity of the engine's ingest queue.
func WithIngestQueueCapacity(n int) Option {
	return func(e *AnalyzerEngine) { e.queueCapacity = n }
}

// WithAnalyzerQueueCapacity sets the capacity of each analyzer's private
// queue.
func WithAnalyzerQueueCapacity(n int) Option {
	return func(e *AnalyzerEngine) { e.analyzerQueueCapacity = n }
}

// WithShutdownGrace sets how long Stop waits for analyzers to drain.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *AnalyzerEngine) { e.shutdownGrace = d }
}

// NewAnalyzerEngine builds an engine bound to storage and sink. The engine
// is Stopped until Start is called.
func NewAnalyzerEngine(storage RuleStorage, sink AlarmSink, opts ...Option) *AnalyzerEngine {
	e := &AnalyzerEngine{
		ruleStorage:   storage,
		alarmSink:     sink,
		queueCapacity: defaultIngestQueueCapacity,
		shutdownGrace: defaultShutdownGrace,
		state:         dto.Stopped,
		messages:      make([]dto.EngineMessage, 0, defaultMaxEngineMessages),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.queueCapacity <= 0 {
		e.queueCapacity = defaultIngestQueueCapacity
	}
	return e
}

// Publish implements analyzer.EngineMessageSink.
func (e *AnalyzerEngine) Publish(msg dto.EngineMessage) {
	e.msgMu.Lock()
	defer e.msgMu.Unlock()
	if len(e.messages) >= defaultMaxEngineMessages {
		e.messages = e.messages[1:]
	}
	e.messages = append(e.messages, msg)
}

// EngineMessages returns a snapshot of recent operator diagnostics.
func (e *AnalyzerEngine) EngineMessages() []dto.EngineMessage {
	e.msgMu.Lock()
	defer e.msgMu.Unlock()
	out := make([]dto.EngineMessage, len(e.messages))
	copy(out, e.messages)
	return out
}

// State reports the engine's current lifecycle state.
func (e *AnalyzerEngine) State() dto.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start reads the full rule set from storage, builds one ProgramAnalyzer
// per program with its rules pre-installed, then begins the ingest
// dispatch loop. A program that later appears only in an ingested event
// (with no pre-loaded rules) is still created lazily by dispatch().
// Calling Start on an already-running engine is a no-op.
func (e *AnalyzerEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != dto.Stopped {
		e.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.ingest = make(chan dto.SystemEvent, e.queueCapacity)
	e.registry = analyzer.NewAnalyzerRegistry(runCtx, func(programName string) *analyzer.ProgramAnalyzer {
		a := analyzer.NewProgramAnalyzer(programName, e.alarmSink, e, e.analyzerQueueCapacity)
		e.installRules(a, programName)
		return a
	})
	e.state = dto.Running
	e.mu.Unlock()

	for _, programName := range e.programNamesWithRules() {
		e.registry.GetOrCreate(programName)
	}

	logger.Info("Engine: started")
	go e.dispatchLoop(runCtx)
	return nil
}

// programNamesWithRules returns the distinct ProgramName values across
// every rule currently in storage, so Start can pre-create an analyzer
// for each one even before its first event arrives.
func (e *AnalyzerEngine) programNamesWithRules() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, cfg := range e.ruleStorage.GetAllRules() {
		if _, ok := seen[cfg.ProgramName]; ok {
			continue
		}
		seen[cfg.ProgramName] = struct{}{}
		names = append(names, cfg.ProgramName)
	}
	return names
}

// dispatchLoop routes every ingested event to its program's analyzer,
// auto-creating the analyzer on first sight of a new program name. A
// panicking dispatch step is the EngineFault condition from spec.md §7:
// it is caught once, and the engine transitions to Stopped rather than
// continuing to run in a possibly-corrupt state.
func (e *AnalyzerEngine) dispatchLoop(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case event := <-e.ingest:
			if !e.safeDispatch(event) {
				e.faultStop()
				return
			}
		case <-ctx.Done():
			e.drainAndStop()
			return
		}
	}
}

// safeDispatch routes event to its program's analyzer. It returns false if
// routing panicked, signaling dispatchLoop to raise an EngineFault.
func (e *AnalyzerEngine) safeDispatch(event dto.SystemEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Engine: fault routing event for %q: %v", event.ApplicationName, r)
			ok = false
		}
	}()

	a := e.registry.GetOrCreate(event.ApplicationName)
	a.Enqueue(event)
	return true
}

// faultStop implements the EngineFault policy: transition the engine to
// Stopped, cancel every analyzer, and raise a Medium alarm so the fault is
// visible to operators rather than silently swallowed.
func (e *AnalyzerEngine) faultStop() {
	e.mu.Lock()
	cancel := e.cancel
	e.state = dto.Stopped
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	logger.Error("Engine: stopped after an internal fault")
	e.Publish(dto.EngineMessage{Timestamp: time.Now(), Text: "engine fault: transitioned to stopped"})
	if e.alarmSink != nil {
		e.alarmSink.Dispatch(dto.AlarmMessage{
			Level:    dto.AlarmMedium,
			Summary:  "engine fault while routing an event; engine stopped",
			RaisedAt: time.Now(),
		})
	}
}

// drainAndStop stops every analyzer (each draining its own queue within
// the shutdown grace period) and transitions the engine to Stopped.
func (e *AnalyzerEngine) drainAndStop() {
	deadline := time.Now().Add(e.shutdownGrace)

	e.mu.Lock()
	e.state = dto.ShuttingDown
	registry := e.registry
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, a := range registry.All() {
		wg.Add(1)
		go func(a *analyzer.ProgramAnalyzer) {
			defer wg.Done()
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			a.Stop(remaining)
		}(a)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.shutdownGrace):
		e.Publish(dto.EngineMessage{Timestamp: time.Now(), Text: "shutdown grace period elapsed before all analyzers drained"})
	}

	e.mu.Lock()
	e.state = dto.Stopped
	e.mu.Unlock()
	logger.Info("Engine: stopped")
}

// Enqueue hands events to the engine's ingest queue. It returns
// ErrEngineNotRunning if the engine is not currently Running; auto-created
// analyzers continue to accept work during ShuttingDown, but the engine
// itself stops accepting new events at the ingest boundary the moment
// shutdown begins.
func (e *AnalyzerEngine) Enqueue(events ...dto.SystemEvent) error {
	e.mu.Lock()
	if e.state != dto.Running {
		e.mu.Unlock()
		return ErrEngineNotRunning
	}
	ingest := e.ingest
	e.mu.Unlock()

	for _, event := range events {
		ingest <- event
	}
	return nil
}

// Stop begins graceful shutdown and blocks until every analyzer has
// drained or the shutdown grace period elapses, whichever comes first.
func (e *AnalyzerEngine) Stop() {
	e.mu.Lock()
	if e.state == dto.Stopped {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
}

// ListAnalyzers returns a status snapshot of every registered analyzer.
func (e *AnalyzerEngine) ListAnalyzers() []dto.AnalyzerStatus {
	e.mu.Lock()
	registry := e.registry
	e.mu.Unlock()
	if registry == nil {
		return nil
	}

	all := registry.All()
	out := make([]dto.AnalyzerStatus, 0, len(all))
	for _, a := range all {
		out = append(out, dto.AnalyzerStatus{ProgramName: a.ProgramName(), State: a.State()})
	}
	return out
}

// ReloadRules re-reads rule definitions for programName (or every program,
// if programName is empty) from storage and re-installs them into the
// matching analyzer's RuleSet. If no analyzer exists yet for programName,
// one is created (with its rules installed by the registry's factory),
// per spec.md §4.1.
func (e *AnalyzerEngine) ReloadRules(programName string) {
	e.mu.Lock()
	registry := e.registry
	e.mu.Unlock()
	if registry == nil {
		return
	}

	if programName != "" {
		if a, ok := registry.Get(programName); ok {
			a.ClearRules()
			e.installRules(a, programName)
		} else {
			registry.GetOrCreate(programName)
		}
		return
	}

	for _, a := range registry.All() {
		a.ClearRules()
		e.installRules(a, a.ProgramName())
	}
}

// installRules builds Rule instances from storage's RuleConfig entries
// for programName and installs them into a.
func (e *AnalyzerEngine) installRules(a *analyzer.ProgramAnalyzer, programName string) {
	for _, cfg := range e.ruleStorage.GetRulesForApplication(programName) {
		rule, err := buildRule(cfg)
		if err != nil {
			logger.Error("Engine: failed to build rule %q for %q: %v", cfg.RuleName, programName, err)
			continue
		}
		if err := a.SetRule(rule); err != nil {
			logger.Error("Engine: failed to install rule %q for %q: %v", cfg.RuleName, programName, err)
		}
	}
}

// buildRule constructs the concrete Rule variant a RuleConfig describes.
func buildRule(cfg dto.RuleConfig) (rules.Rule, error) {
	switch cfg.Kind {
	case dto.RuleKindThresholdWithinWindow:
		return rules.NewThresholdWithinWindow(
			cfg.RuleName, cfg.ProgramName, cfg.OperationName, cfg.AlarmLevel, cfg.AlarmMessage,
			cfg.Threshold, time.Duration(cfg.WindowSeconds)*time.Second, thresholdPredicate(cfg),
		)
	case dto.RuleKindTimeBetweenOperations:
		return rules.NewTimeBetweenOperations(
			cfg.RuleName, cfg.ProgramName, cfg.OperationName, cfg.AlarmLevel, cfg.AlarmMessage,
			time.Duration(cfg.MaxGapSeconds)*time.Second,
		), nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", cfg.Kind)
	}
}

// thresholdPredicate combines a RuleConfig's FailuresOnly flag with its
// free-form PredicateExpr into the single expression ThresholdWithinWindow
// compiles. FailuresOnly is a convenience shorthand for "Failed"; when both
// are set the rule only counts events matching both conditions.
func thresholdPredicate(cfg dto.RuleConfig) string {
	if !cfg.FailuresOnly {
		return cfg.PredicateExpr
	}
	if cfg.PredicateExpr == "" {
		return "Failed"
	}
	return "Failed && (" + cfg.PredicateExpr + ")"
}
