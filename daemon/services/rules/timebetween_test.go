package rules

import (
	"testing"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

func TestTimeBetweenOperations_TriggersOnGapEvent(t *testing.T) {
	rule := NewTimeBetweenOperations("heartbeat-gap", "X", "tick", dto.AlarmMedium, "", 30*time.Second)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: base}
	if rule.AddAndCheckIfTriggered(first) {
		t.Fatal("first event must never trigger a gap")
	}

	second := dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: base.Add(45 * time.Second)}
	if !rule.AddAndCheckIfTriggered(second) {
		t.Fatal("expected gap trigger on event arriving 45s after the previous one")
	}

	rule.StopTimer()
}

func TestTimeBetweenOperations_NoTriggerWithinGap(t *testing.T) {
	rule := NewTimeBetweenOperations("heartbeat-gap", "X", "tick", dto.AlarmMedium, "", 30*time.Second)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: base}
	rule.AddAndCheckIfTriggered(first)

	second := dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: base.Add(10 * time.Second)}
	if rule.AddAndCheckIfTriggered(second) {
		t.Fatal("did not expect a trigger for an event within the gap")
	}

	rule.StopTimer()
}

type recordingObserver struct {
	timedOut chan Rule
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{timedOut: make(chan Rule, 1)}
}

func (o *recordingObserver) OnRuleTimeout(rule Rule) {
	o.timedOut <- rule
}

func TestTimeBetweenOperations_TriggersOnTimeout(t *testing.T) {
	rule := NewTimeBetweenOperations("heartbeat-gap", "X", "tick", dto.AlarmMedium, "", 30*time.Millisecond)
	observer := newRecordingObserver()
	rule.AttachObserver(observer)
	defer rule.StopTimer()

	rule.AddAndCheckIfTriggered(dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: time.Now()})

	select {
	case got := <-observer.timedOut:
		if got.Name() != rule.Name() {
			t.Fatalf("observer notified for wrong rule: %s", got.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("expected timeout callback within 1s")
	}
}

func TestTimeBetweenOperations_StopTimerSuppressesTimeout(t *testing.T) {
	rule := NewTimeBetweenOperations("heartbeat-gap", "X", "tick", dto.AlarmMedium, "", 20*time.Millisecond)
	observer := newRecordingObserver()
	rule.AttachObserver(observer)

	rule.AddAndCheckIfTriggered(dto.SystemEvent{ApplicationName: "X", OperationName: "tick", Timestamp: time.Now()})
	rule.StopTimer()

	select {
	case <-observer.timedOut:
		t.Fatal("did not expect a timeout callback after StopTimer")
	case <-time.After(100 * time.Millisecond):
	}
}
