// Package rules implements the AnalyzeRule contract and its concrete
// variants: ThresholdWithinWindow and TimeBetweenOperations.
package rules

import (
	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

// Rule is the polymorphic contract every AnalyzeRule variant satisfies.
// An instance belongs to exactly one program; the Program name is fixed
// at construction and never mutated afterward.
type Rule interface {
	Name() string
	Program() string

	// Operation returns the operationName filter. An empty string matches
	// every operation of the owning program.
	Operation() string

	Level() dto.AlarmLevel

	// Matches reports whether event.OperationName satisfies Operation().
	Matches(event dto.SystemEvent) bool

	// AddAndCheckIfTriggered consumes event, updates the rule's private
	// evaluation state, and reports whether the rule is now triggered.
	AddAndCheckIfTriggered(event dto.SystemEvent) bool

	// Reset clears all evaluation state, including any armed timer.
	Reset()

	// Summary and Detail render the alarm text for a triggering event.
	// event is nil for a timer-driven timeout trigger.
	Summary(event *dto.SystemEvent) string
	Detail(event *dto.SystemEvent) string
}

// TimeoutObserver receives a timeout-triggered alarm from a TimerDriven
// rule. There is no originating SystemEvent for a timeout trigger.
type TimeoutObserver interface {
	OnRuleTimeout(rule Rule)
}

// TimerDriven is implemented by rules that may trigger independently of
// incoming events, such as TimeBetweenOperations. The owning analyzer
// attaches itself as the observer when the rule is installed and calls
// StopTimer when the rule is replaced or the RuleSet is cleared, so that
// unloading a rule tears down its timer deterministically rather than
// leaving a dangling goroutine.
type TimerDriven interface {
	AttachObserver(observer TimeoutObserver)
	StopTimer()
}

// base holds the attributes common to every AnalyzeRule variant.
type base struct {
	name        string
	program     string
	operation   string
	level       dto.AlarmLevel
	messageTmpl string
}

func (b *base) Name() string          { return b.name }
func (b *base) Program() string       { return b.program }
func (b *base) Operation() string     { return b.operation }
func (b *base) Level() dto.AlarmLevel { return b.level }

func (b *base) Matches(event dto.SystemEvent) bool {
	return b.operation == "" || b.operation == event.OperationName
}
