// Package analyzer implements the per-program ProgramAnalyzer and its
// supporting RuleSet and AnalyzerRegistry.
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
	"github.com/ruaan-deysel/eventwatch/daemon/services/rules"
)

// AlarmSink receives AlarmMessages raised by a triggered rule. Dispatch is
// fire-and-forget: a slow or failing sink must never block event
// processing.
type AlarmSink interface {
	Dispatch(alarm dto.AlarmMessage)
}

// EngineMessageSink receives operator-facing diagnostic strings.
type EngineMessageSink interface {
	Publish(msg dto.EngineMessage)
}

// defaultQueueCapacity bounds a program's private event queue when the
// caller does not specify one.
const defaultQueueCapacity = 256

// ProgramAnalyzer owns every rule installed for one monitored program and
// evaluates incoming SystemEvents against them on its own goroutine.
type ProgramAnalyzer struct {
	programName string
	alarmSink   AlarmSink
	messages    EngineMessageSink

	mu    sync.Mutex
	state dto.State
	rules *RuleSet

	queue  chan dto.SystemEvent
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProgramAnalyzer builds a ProgramAnalyzer for programName, bound to
// sink for alarm dispatch and messages for diagnostics. The analyzer is
// Stopped until Start is called.
func NewProgramAnalyzer(programName string, sink AlarmSink, messages EngineMessageSink, queueCapacity int) *ProgramAnalyzer {
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	return &ProgramAnalyzer{
		programName: programName,
		alarmSink:   sink,
		messages:    messages,
		state:       dto.Stopped,
		rules:       NewRuleSet(programName),
		queue:       make(chan dto.SystemEvent, queueCapacity),
	}
}

// ProgramName returns the owning program's name.
func (a *ProgramAnalyzer) ProgramName() string { return a.programName }

// State reports the analyzer's current lifecycle state.
func (a *ProgramAnalyzer) State() dto.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start transitions the analyzer to Running and begins consuming its
// queue on a background goroutine. Calling Start on an already-running
// analyzer is a no-op.
func (a *ProgramAnalyzer) Start(ctx context.Context) {
	a.mu.Lock()
	if a.state != dto.Stopped {
		a.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.state = dto.Running
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run(runCtx)
}

// Enqueue hands an event to this analyzer. It blocks only as long as the
// analyzer's private queue is full; callers that need a non-blocking
// handoff should select on a done channel alongside this send.
func (a *ProgramAnalyzer) Enqueue(event dto.SystemEvent) {
	a.queue <- event
}

// SetRule installs or replaces a rule in this analyzer's RuleSet. If the
// rule is TimerDriven the analyzer attaches itself as the TimeoutObserver
// so a timer-driven trigger raises an alarm the same way an event-driven
// one does.
func (a *ProgramAnalyzer) SetRule(rule rules.Rule) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if timerDriven, ok := rule.(rules.TimerDriven); ok {
		timerDriven.AttachObserver(a)
	}
	return a.rules.Put(rule)
}

// ClearRules removes every installed rule, stopping any armed timers.
func (a *ProgramAnalyzer) ClearRules() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules.Clear()
}

// RuleCount reports how many rules are currently installed.
func (a *ProgramAnalyzer) RuleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rules.Len()
}

// run is the analyzer's main loop. It drains the queue until ctx is
// cancelled, evaluating every installed rule against each event in
// parallel, then drains whatever remains queued before returning. A panic
// escaping processEvent itself (as opposed to an individual rule, already
// contained by recoverRuleFault) is the AnalyzerFault condition from
// spec.md §7: the analyzer stops rather than risk continuing to run past
// a corrupted matching pass.
func (a *ProgramAnalyzer) run(ctx context.Context) {
	defer a.wg.Done()
	defer close(a.done)

	logger.Debug("Analyzer[%s]: started", a.programName)

	for {
		select {
		case event := <-a.queue:
			if !a.safeProcessEvent(event) {
				a.faultStop()
				return
			}
		case <-ctx.Done():
			a.drain()
			a.mu.Lock()
			a.state = dto.Stopped
			a.mu.Unlock()
			logger.Debug("Analyzer[%s]: stopped", a.programName)
			return
		}
	}
}

// safeProcessEvent runs processEvent under a top-level recover. It returns
// false if a panic was caught, signaling run() to raise an AnalyzerFault.
func (a *ProgramAnalyzer) safeProcessEvent(event dto.SystemEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Analyzer[%s]: fault processing event: %v", a.programName, r)
			ok = false
		}
	}()
	a.processEvent(event)
	return true
}

// faultStop implements the AnalyzerFault policy: transition to Stopped and
// raise a Medium alarm naming the program, instead of letting a panic in
// the analyzer's own code take down the process.
func (a *ProgramAnalyzer) faultStop() {
	a.mu.Lock()
	a.state = dto.Stopped
	a.mu.Unlock()

	logger.Error("Analyzer[%s]: stopped after an internal fault", a.programName)
	if a.messages != nil {
		a.messages.Publish(dto.EngineMessage{
			Timestamp: time.Now(),
			Text:      "analyzer fault: " + a.programName + " transitioned to stopped",
		})
	}
	if a.alarmSink != nil {
		a.alarmSink.Dispatch(dto.AlarmMessage{
			Level:           dto.AlarmMedium,
			ApplicationName: a.programName,
			Summary:         fmt.Sprintf("analyzer %q stopped after an internal fault", a.programName),
			RaisedAt:        time.Now(),
		})
	}
}

// drain consumes whatever is left in the queue without blocking, giving
// already-enqueued events a chance to be analyzed before shutdown.
func (a *ProgramAnalyzer) drain() {
	for {
		select {
		case event := <-a.queue:
			a.processEvent(event)
		default:
			return
		}
	}
}

// processEvent fans event out to every matching rule concurrently,
// containing a panicking rule so it cannot take down the analyzer.
func (a *ProgramAnalyzer) processEvent(event dto.SystemEvent) {
	var matching []rules.Rule
	func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		matching = make([]rules.Rule, 0, a.rules.Len())
		for _, r := range a.rules.All() {
			if r.Matches(event) {
				matching = append(matching, r)
			}
		}
	}()

	var wg sync.WaitGroup
	for _, r := range matching {
		wg.Add(1)
		go func(r rules.Rule) {
			defer wg.Done()
			defer a.recoverRuleFault(r)
			if r.AddAndCheckIfTriggered(event) {
				e := event
				a.raise(r, &e)
			}
		}(r)
	}
	wg.Wait()
}

// OnRuleTimeout implements rules.TimeoutObserver for timer-driven rules.
func (a *ProgramAnalyzer) OnRuleTimeout(rule rules.Rule) {
	defer a.recoverRuleFault(rule)
	a.raise(rule, nil)
}

// raise builds and dispatches an AlarmMessage for a triggered rule.
func (a *ProgramAnalyzer) raise(rule rules.Rule, event *dto.SystemEvent) {
	alarm := dto.AlarmMessage{
		Level:           rule.Level(),
		ApplicationName: a.programName,
		Summary:         rule.Summary(event),
		Detail:          rule.Detail(event),
		RaisedAt:        time.Now(),
	}
	if event != nil {
		id := event.ID
		alarm.EventID = &id
	}

	logger.Warning("Analyzer[%s]: rule %q triggered: %s", a.programName, rule.Name(), alarm.Summary)
	if a.alarmSink != nil {
		a.alarmSink.Dispatch(alarm)
	}
}

// recoverRuleFault contains a panicking rule evaluation so one faulty
// rule cannot stop the analyzer from processing the remaining rules or
// future events. The fault is surfaced both as an operator diagnostic and
// as a Medium alarm, per spec.md §7's RuleEvaluationFault policy.
func (a *ProgramAnalyzer) recoverRuleFault(rule rules.Rule) {
	if r := recover(); r != nil {
		logger.Error("Analyzer[%s]: rule %q panicked: %v", a.programName, rule.Name(), r)
		if a.messages != nil {
			a.messages.Publish(dto.EngineMessage{
				Timestamp: time.Now(),
				Text:      "rule fault in " + a.programName + "/" + rule.Name(),
			})
		}
		if a.alarmSink != nil {
			a.alarmSink.Dispatch(dto.AlarmMessage{
				Level:           dto.AlarmMedium,
				ApplicationName: a.programName,
				Summary:         fmt.Sprintf("rule %q faulted during evaluation", rule.Name()),
				Detail:          fmt.Sprintf("panic: %v", r),
				RaisedAt:        time.Now(),
			})
		}
	}
}

// Stop moves the analyzer to ShuttingDown and cancels its run loop, which
// processes the events already queued before it exits. Stop returns when
// the loop has exited or grace has elapsed, whichever comes first; in the
// latter case the loop keeps draining in the background.
func (a *ProgramAnalyzer) Stop(grace time.Duration) {
	a.mu.Lock()
	if a.state == dto.Stopped {
		a.mu.Unlock()
		return
	}
	a.state = dto.ShuttingDown
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warning("Analyzer[%s]: shutdown grace period elapsed before drain completed", a.programName)
	}
}
