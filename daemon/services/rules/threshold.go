package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

// eventEnv is the flattened view of a SystemEvent exposed to a compiled
// ThresholdWithinWindow predicate.
type eventEnv struct {
	ApplicationName string
	OperationName   string
	Success         bool
	Failed          bool
	ErrorMessage    string
}

func newEventEnv(event dto.SystemEvent) eventEnv {
	env := eventEnv{
		ApplicationName: event.ApplicationName,
		OperationName:   event.OperationName,
		Success:         event.Success,
		Failed:          event.Failed(),
	}
	if event.Error != nil {
		env.ErrorMessage = event.Error.Message
	}
	return env
}

// ThresholdWithinWindow triggers when at least Threshold matching events
// land within a sliding Window. Once triggered it enters a cooldown: it
// will not re-trigger until the count drops back below Threshold and
// climbs to it again.
type ThresholdWithinWindow struct {
	base

	threshold int
	window    time.Duration
	predicate *vm.Program

	mu         sync.Mutex
	timestamps []time.Time
	cooling    bool
}

// NewThresholdWithinWindow builds a ThresholdWithinWindow rule. predicateExpr
// may be empty, in which case every event matching Operation() counts toward
// the threshold.
func NewThresholdWithinWindow(name, program, operation string, level dto.AlarmLevel, messageTmpl string, threshold int, window time.Duration, predicateExpr string) (*ThresholdWithinWindow, error) {
	r := &ThresholdWithinWindow{
		base: base{
			name:        name,
			program:     program,
			operation:   operation,
			level:       level,
			messageTmpl: messageTmpl,
		},
		threshold: threshold,
		window:    window,
	}

	if predicateExpr != "" {
		program, err := expr.Compile(predicateExpr, expr.Env(eventEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling predicate for rule %q: %w", name, err)
		}
		r.predicate = program
	}

	return r, nil
}

// AddAndCheckIfTriggered implements Rule. Call sites must have already
// confirmed Matches(event).
func (r *ThresholdWithinWindow) AddAndCheckIfTriggered(event dto.SystemEvent) bool {
	if r.predicate != nil {
		result, err := expr.Run(r.predicate, newEventEnv(event))
		if err != nil {
			return false
		}
		match, ok := result.(bool)
		if !ok || !match {
			return false
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := event.Timestamp
	cutoff := now.Add(-r.window)
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = append(kept, now)

	count := len(r.timestamps)
	if count < r.threshold {
		r.cooling = false
		return false
	}

	if r.cooling {
		return false
	}
	r.cooling = true
	return true
}

// Reset clears all accumulated timestamps and the cooldown latch.
func (r *ThresholdWithinWindow) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestamps = nil
	r.cooling = false
}

func (r *ThresholdWithinWindow) Summary(event *dto.SystemEvent) string {
	app := r.program
	if event != nil {
		app = event.ApplicationName
	}
	return fmt.Sprintf("%s: %d+ matching events within %s for %s", r.name, r.threshold, r.window, app)
}

func (r *ThresholdWithinWindow) Detail(event *dto.SystemEvent) string {
	if r.messageTmpl != "" {
		return r.messageTmpl
	}
	if event == nil {
		return r.Summary(nil)
	}
	return fmt.Sprintf("operation %q on %q reached threshold", event.OperationName, event.ApplicationName)
}
