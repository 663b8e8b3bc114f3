package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

func TestParseEventID_RoundTrips(t *testing.T) {
	id := dto.EventID{Partition: "2026-07-30", Row: "abc123"}
	parsed, err := ParseEventID(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected round trip %+v, got %+v", id, parsed)
	}
}

func TestParseEventID_RejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "noseparator", ":emptypartition", "emptyrow:"} {
		if _, err := ParseEventID(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestStore_AppendAndGetEvent(t *testing.T) {
	s := NewStore("")
	id := dto.EventID{Partition: "X", Row: "1"}
	event := dto.SystemEvent{ID: id, ApplicationName: "X", Timestamp: time.Now()}
	s.Append(event)

	got, err := s.GetEvent(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ApplicationName != "X" {
		t.Fatalf("expected application X, got %q", got.ApplicationName)
	}
}

func TestStore_GetEventNotFound(t *testing.T) {
	s := NewStore("")
	if _, err := s.GetEvent(dto.EventID{Partition: "X", Row: "missing"}); err != ErrEventNotFound {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestStore_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	s := NewStore(path)
	id := dto.EventID{Partition: "X", Row: "1"}
	s.Append(dto.SystemEvent{ID: id, ApplicationName: "X", Timestamp: time.Now()})

	reloaded := NewStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	got, err := reloaded.GetEvent(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ApplicationName != "X" {
		t.Fatalf("expected application X after reload, got %q", got.ApplicationName)
	}
}
