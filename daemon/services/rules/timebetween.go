package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

// TimeBetweenOperations triggers whenever two consecutive matching events
// are farther apart than MaxGap, and also independently via a timer: if no
// matching event arrives within MaxGap of the last one, the rule fires a
// timeout trigger through its attached TimeoutObserver with no originating
// SystemEvent.
type TimeBetweenOperations struct {
	base

	maxGap time.Duration

	mu       sync.Mutex
	lastSeen time.Time
	timer    *time.Timer
	observer TimeoutObserver
	stopped  bool
}

// NewTimeBetweenOperations builds a TimeBetweenOperations rule.
func NewTimeBetweenOperations(name, program, operation string, level dto.AlarmLevel, messageTmpl string, maxGap time.Duration) *TimeBetweenOperations {
	return &TimeBetweenOperations{
		base: base{
			name:        name,
			program:     program,
			operation:   operation,
			level:       level,
			messageTmpl: messageTmpl,
		},
		maxGap: maxGap,
	}
}

// AttachObserver implements TimerDriven. It must be called before the rule
// receives its first event; ProgramAnalyzer.SetRule calls it just before
// putting the rule into its RuleSet.
func (r *TimeBetweenOperations) AttachObserver(observer TimeoutObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = observer
}

// StopTimer implements TimerDriven. Called when the rule is replaced or
// the owning RuleSet is cleared, so a stale timer cannot fire a timeout
// alarm for a rule nobody holds anymore.
func (r *TimeBetweenOperations) StopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

// AddAndCheckIfTriggered implements Rule. Call sites must have already
// confirmed Matches(event).
func (r *TimeBetweenOperations) AddAndCheckIfTriggered(event dto.SystemEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}

	triggered := false
	if !r.lastSeen.IsZero() && event.Timestamp.Sub(r.lastSeen) > r.maxGap {
		triggered = true
	}
	r.lastSeen = event.Timestamp
	r.rearmLocked()

	return triggered
}

// rearmLocked stops any existing timer and starts a fresh one. Callers
// must hold r.mu.
func (r *TimeBetweenOperations) rearmLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.maxGap, r.onTimeout)
}

// onTimeout runs on its own goroutine when MaxGap elapses with no
// matching event in between.
func (r *TimeBetweenOperations) onTimeout() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.lastSeen = time.Time{}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer.OnRuleTimeout(r)
	}
}

// Reset clears the last-seen timestamp and cancels any armed timer.
func (r *TimeBetweenOperations) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen = time.Time{}
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *TimeBetweenOperations) Summary(event *dto.SystemEvent) string {
	app := r.program
	if event != nil {
		app = event.ApplicationName
	}
	return fmt.Sprintf("%s: gap exceeded %s for %s", r.name, r.maxGap, app)
}

func (r *TimeBetweenOperations) Detail(event *dto.SystemEvent) string {
	if r.messageTmpl != "" {
		return r.messageTmpl
	}
	if event == nil {
		return fmt.Sprintf("no matching operation observed within %s", r.maxGap)
	}
	return fmt.Sprintf("operation %q on %q arrived late", event.OperationName, event.ApplicationName)
}
