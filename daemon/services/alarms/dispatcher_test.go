package alarms

import (
	"testing"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

func TestDispatcher_RecordsHistoryWithNoChannels(t *testing.T) {
	d := NewDispatcher(nil, 2)

	d.Dispatch(dto.AlarmMessage{ApplicationName: "X", Summary: "one", RaisedAt: time.Now()})
	d.Dispatch(dto.AlarmMessage{ApplicationName: "X", Summary: "two", RaisedAt: time.Now()})
	d.Dispatch(dto.AlarmMessage{ApplicationName: "X", Summary: "three", RaisedAt: time.Now()})

	recent := d.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(recent))
	}
	if recent[0].Summary != "two" || recent[1].Summary != "three" {
		t.Fatalf("expected oldest entry evicted, got %+v", recent)
	}
}

func TestDispatcher_RecentN(t *testing.T) {
	d := NewDispatcher(nil, 10)
	for i := 0; i < 5; i++ {
		d.Dispatch(dto.AlarmMessage{ApplicationName: "X", Summary: "a", RaisedAt: time.Now()})
	}
	if got := len(d.Recent(2)); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}
