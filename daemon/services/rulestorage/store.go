// Package rulestorage implements the RuleStorage external contract: a
// JSON-file-backed source of RuleConfig definitions, watched for changes
// so edits on disk reach the engine without an operator-triggered reload.
package rulestorage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

// ErrRuleNotFound is returned when a rule id does not exist in the store.
var ErrRuleNotFound = fmt.Errorf("rule not found")

// ReloadFunc is invoked after the rule file changes on disk. The watcher
// always passes an empty programName, meaning every program.
type ReloadFunc func(programName string)

// Store is a JSON-file-backed RuleStorage. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	rules    []dto.RuleConfig
	filePath string

	watcher  *fsnotify.Watcher
	onChange ReloadFunc
}

// NewStore builds a Store backed by filePath. The file need not exist yet;
// Load treats a missing file as an empty rule set.
func NewStore(filePath string) *Store {
	return &Store{
		filePath: filePath,
		rules:    make([]dto.RuleConfig, 0),
	}
}

// Load reads rule definitions from disk, replacing the in-memory set.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.filePath) //nolint:gosec // filePath is an operator-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("RuleStorage: no rule file at %s, starting empty", s.filePath)
			s.rules = make([]dto.RuleConfig, 0)
			return nil
		}
		return fmt.Errorf("reading rule file: %w", err)
	}

	var file dto.RuleStorageFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing rule file: %w", err)
	}

	s.rules = file.Rules
	if s.rules == nil {
		s.rules = make([]dto.RuleConfig, 0)
	}
	logger.Info("RuleStorage: loaded %d rules from %s", len(s.rules), s.filePath)
	return nil
}

// save writes the current rule set to disk. Must be called with s.mu held.
func (s *Store) save() error {
	file := dto.RuleStorageFile{Rules: s.rules}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rule file: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // config directory, not world data
		return fmt.Errorf("creating rule directory: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil { //nolint:gosec // config file, not world data
		return fmt.Errorf("writing rule file: %w", err)
	}
	return nil
}

// GetAllRules implements RuleStorage.
func (s *Store) GetAllRules() []dto.RuleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.RuleConfig, len(s.rules))
	copy(out, s.rules)
	return out
}

// GetRulesForApplication implements RuleStorage.
func (s *Store) GetRulesForApplication(programName string) []dto.RuleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []dto.RuleConfig
	for _, r := range s.rules {
		if r.ProgramName == programName {
			out = append(out, r)
		}
	}
	return out
}

// CreateRule appends a new rule and persists it. If the write fails the
// append is rolled back, keeping in-memory state consistent with disk.
func (s *Store) CreateRule(rule dto.RuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if r.RuleName == rule.RuleName && r.ProgramName == rule.ProgramName {
			return fmt.Errorf("rule %q already exists for program %q", rule.RuleName, rule.ProgramName)
		}
	}

	s.rules = append(s.rules, rule)
	if err := s.save(); err != nil {
		s.rules = s.rules[:len(s.rules)-1]
		return err
	}
	logger.Info("RuleStorage: created rule %q for %q", rule.RuleName, rule.ProgramName)
	return nil
}

// DeleteRule removes a rule by program and name.
func (s *Store) DeleteRule(programName, ruleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ProgramName == programName && r.RuleName == ruleName {
			old := s.rules[i]
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			if err := s.save(); err != nil {
				s.rules = append(s.rules[:i], append([]dto.RuleConfig{old}, s.rules[i:]...)...)
				return err
			}
			logger.Info("RuleStorage: deleted rule %q for %q", ruleName, programName)
			return nil
		}
	}
	return ErrRuleNotFound
}

// Watch starts an fsnotify watch on the rule file's directory and invokes
// onChange with the empty string (meaning "reload everything") whenever
// the file is written. Watch returns immediately; the watch runs until
// Close is called. Calling Watch more than once replaces the previous
// callback.
func (s *Store) Watch(onChange ReloadFunc) error {
	s.mu.Lock()
	s.onChange = onChange
	watcher := s.watcher
	s.mu.Unlock()

	if watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating rule file watcher: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // config directory, not world data
		_ = w.Close()
		return fmt.Errorf("creating rule directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching rule directory: %w", err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go s.watchLoop(w)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher) {
	target := filepath.Clean(s.filePath)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Load(); err != nil {
				logger.Error("RuleStorage: reload after file change failed: %v", err)
				continue
			}
			s.mu.RLock()
			cb := s.onChange
			s.mu.RUnlock()
			if cb != nil {
				cb("")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("RuleStorage: watch error: %v", err)
		}
	}
}

// Close stops the file watcher, if one was started.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
