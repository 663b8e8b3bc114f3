package rules

import (
	"testing"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

func TestThresholdWithinWindow_TriggersOnceThenCools(t *testing.T) {
	rule, err := NewThresholdWithinWindow(
		"payment-failures", "X", "pay", dto.AlarmHigh, "",
		3, 60*time.Second, "Failed == true",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []struct {
		offset    time.Duration
		triggered bool
	}{
		{0 * time.Second, false},
		{10 * time.Second, false},
		{20 * time.Second, true},
		{30 * time.Second, false},
	}

	for i, tc := range events {
		evt := dto.SystemEvent{
			ApplicationName: "X",
			OperationName:   "pay",
			Success:         false,
			Timestamp:       base.Add(tc.offset),
		}
		got := rule.AddAndCheckIfTriggered(evt)
		if got != tc.triggered {
			t.Errorf("event %d at +%s: got triggered=%v, want %v", i, tc.offset, got, tc.triggered)
		}
	}
}

func TestThresholdWithinWindow_PredicateFiltersSuccesses(t *testing.T) {
	rule, err := NewThresholdWithinWindow(
		"payment-failures", "X", "pay", dto.AlarmHigh, "",
		2, 60*time.Second, "Failed == true",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	success := dto.SystemEvent{ApplicationName: "X", OperationName: "pay", Success: true, Timestamp: base}
	if rule.AddAndCheckIfTriggered(success) {
		t.Fatal("successful event should not count toward threshold")
	}

	fail1 := dto.SystemEvent{ApplicationName: "X", OperationName: "pay", Success: false, Timestamp: base.Add(time.Second)}
	if rule.AddAndCheckIfTriggered(fail1) {
		t.Fatal("did not expect trigger on first failure")
	}

	fail2 := dto.SystemEvent{ApplicationName: "X", OperationName: "pay", Success: false, Timestamp: base.Add(2 * time.Second)}
	if !rule.AddAndCheckIfTriggered(fail2) {
		t.Fatal("expected trigger on second failure")
	}
}

func TestThresholdWithinWindow_WindowEviction(t *testing.T) {
	rule, err := NewThresholdWithinWindow("gap", "X", "", dto.AlarmLow, "", 2, 10*time.Second, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := dto.SystemEvent{ApplicationName: "X", Timestamp: base}
	if rule.AddAndCheckIfTriggered(e1) {
		t.Fatal("single event must not trigger threshold 2")
	}

	e2 := dto.SystemEvent{ApplicationName: "X", Timestamp: base.Add(20 * time.Second)}
	if rule.AddAndCheckIfTriggered(e2) {
		t.Fatal("first event should have aged out of the window")
	}
}

func TestThresholdWithinWindow_Reset(t *testing.T) {
	rule, err := NewThresholdWithinWindow("r", "X", "", dto.AlarmLow, "", 1, time.Minute, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	if !rule.AddAndCheckIfTriggered(dto.SystemEvent{ApplicationName: "X", Timestamp: now}) {
		t.Fatal("expected trigger with threshold 1")
	}
	rule.Reset()
	if !rule.AddAndCheckIfTriggered(dto.SystemEvent{ApplicationName: "X", Timestamp: now.Add(time.Second)}) {
		t.Fatal("expected re-trigger after Reset cleared cooldown")
	}
}
