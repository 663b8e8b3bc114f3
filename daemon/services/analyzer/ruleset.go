package analyzer

import (
	"fmt"

	"github.com/ruaan-deysel/eventwatch/daemon/services/rules"
)

// errProgramMismatch is returned when a rule is added to a RuleSet it does
// not belong to.
type errProgramMismatch struct {
	ruleProgram string
	setProgram  string
}

func (e *errProgramMismatch) Error() string {
	return fmt.Sprintf("rule belongs to program %q, not %q", e.ruleProgram, e.setProgram)
}

// RuleSet holds every rule installed for one program. It is owned by a
// single ProgramAnalyzer and is not safe for concurrent use from outside
// that analyzer's goroutine.
type RuleSet struct {
	program string
	rules   map[string]rules.Rule
}

// NewRuleSet builds an empty RuleSet scoped to program.
func NewRuleSet(program string) *RuleSet {
	return &RuleSet{
		program: program,
		rules:   make(map[string]rules.Rule),
	}
}

// Put installs rule, replacing any existing rule of the same name. If the
// replaced rule is TimerDriven its timer is stopped so it cannot fire a
// stale timeout alarm after being unloaded.
func (s *RuleSet) Put(rule rules.Rule) error {
	if rule.Program() != s.program {
		return &errProgramMismatch{ruleProgram: rule.Program(), setProgram: s.program}
	}

	if old, ok := s.rules[rule.Name()]; ok {
		if timerDriven, ok := old.(rules.TimerDriven); ok {
			timerDriven.StopTimer()
		}
	}

	s.rules[rule.Name()] = rule
	return nil
}

// All returns every installed rule. The slice is a snapshot; callers must
// not mutate the RuleSet while iterating over it from another goroutine.
func (s *RuleSet) All() []rules.Rule {
	out := make([]rules.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out
}

// Len reports how many rules are installed.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Clear removes every rule, stopping the timers of any TimerDriven rule.
func (s *RuleSet) Clear() {
	for _, r := range s.rules {
		if timerDriven, ok := r.(rules.TimerDriven); ok {
			timerDriven.StopTimer()
		}
	}
	s.rules = make(map[string]rules.Rule)
}
