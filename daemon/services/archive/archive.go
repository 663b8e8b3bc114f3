// Package archive implements the read side of the archive document view:
// a composite (partition, row) id lookup over previously ingested
// SystemEvents. spec.md fixes only the id-encoding contract; this package
// supplies a minimal in-memory/file-backed implementation so the HTTP
// handler in services/api has something concrete to serve. Production
// deployments are expected to swap in their own tabular store behind the
// same Archive interface.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
)

// ErrEventNotFound is returned when no event exists at the given id.
var ErrEventNotFound = errors.New("event not found")

// ParseEventID decodes a "partition:row" string produced by
// dto.EventID.String back into its components.
func ParseEventID(s string) (dto.EventID, error) {
	partition, row, ok := strings.Cut(s, ":")
	if !ok || partition == "" || row == "" {
		return dto.EventID{}, fmt.Errorf("invalid event id %q: expected \"partition:row\"", s)
	}
	return dto.EventID{Partition: partition, Row: row}, nil
}

// Archive is the document-view read contract: look up a previously
// ingested event by its composite id.
type Archive interface {
	GetEvent(id dto.EventID) (dto.SystemEvent, error)
	Append(event dto.SystemEvent)
}

// Store is an in-memory Archive optionally persisted to a JSON file on
// every Append. It is intended for small deployments and tests; a
// production archive would back this interface with a real tabular store.
type Store struct {
	mu       sync.RWMutex
	byID     map[dto.EventID]dto.SystemEvent
	filePath string
}

// NewStore builds an empty in-memory Store. If filePath is non-empty,
// Append persists the full event set after every call.
func NewStore(filePath string) *Store {
	return &Store{
		byID:     make(map[dto.EventID]dto.SystemEvent),
		filePath: filePath,
	}
}

// GetEvent implements Archive.
func (s *Store) GetEvent(id dto.EventID) (dto.SystemEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.byID[id]
	if !ok {
		return dto.SystemEvent{}, ErrEventNotFound
	}
	return event, nil
}

// Append implements Archive. A later event with the same id overwrites
// the earlier one, consistent with SystemEvent.ID being a stable document
// key rather than an append-only sequence number.
func (s *Store) Append(event dto.SystemEvent) {
	s.mu.Lock()
	s.byID[event.ID] = event
	if s.filePath != "" {
		_ = s.persistLocked()
	}
	s.mu.Unlock()
}

// persistLocked writes every retained event to s.filePath as a JSON
// array. Must be called with s.mu held.
func (s *Store) persistLocked() error {
	events := make([]dto.SystemEvent, 0, len(s.byID))
	for _, e := range s.byID {
		events = append(events, e)
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling archive: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0o600) //nolint:gosec // archive file is an operator-supplied path
}

// Load replaces the in-memory set with the contents of s.filePath. A
// missing file is treated as an empty archive.
func (s *Store) Load() error {
	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath) //nolint:gosec // archive file is an operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading archive file: %w", err)
	}

	var events []dto.SystemEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parsing archive file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.byID[e.ID] = e
	}
	return nil
}
