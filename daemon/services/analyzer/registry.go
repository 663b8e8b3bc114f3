package analyzer

import (
	"context"
	"sync"
)

// Factory builds a new ProgramAnalyzer for a program name the registry has
// not seen before.
type Factory func(programName string) *ProgramAnalyzer

// AnalyzerRegistry is a concurrent-safe insert-or-get map of one
// ProgramAnalyzer per program name. Lookups of an existing analyzer take
// only the read lock. Creating a new analyzer holds the write lock while
// the factory builds it and it is started, so concurrent callers wait for
// that creation and all receive the same instance.
type AnalyzerRegistry struct {
	mu        sync.RWMutex
	analyzers map[string]*ProgramAnalyzer
	factory   Factory
	ctx       context.Context
}

// NewAnalyzerRegistry builds an empty registry. ctx is passed to every
// analyzer's Start call; cancelling it stops every analyzer the registry
// has created.
func NewAnalyzerRegistry(ctx context.Context, factory Factory) *AnalyzerRegistry {
	return &AnalyzerRegistry{
		analyzers: make(map[string]*ProgramAnalyzer),
		factory:   factory,
		ctx:       ctx,
	}
}

// GetOrCreate returns the existing analyzer for programName, or builds,
// starts and registers a new one if none exists yet. Auto-creation
// continues to work for any programName, including during the registry
// owner's ShuttingDown phase, since an analyzer created late simply drains
// on the following Stop call like any other.
func (r *AnalyzerRegistry) GetOrCreate(programName string) *ProgramAnalyzer {
	r.mu.RLock()
	existing, ok := r.analyzers[programName]
	r.mu.RUnlock()
	if ok {
		return existing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.analyzers[programName]; ok {
		return existing
	}

	a := r.factory(programName)
	a.Start(r.ctx)
	r.analyzers[programName] = a
	return a
}

// Get returns the analyzer for programName, if one has been created.
func (r *AnalyzerRegistry) Get(programName string) (*ProgramAnalyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[programName]
	return a, ok
}

// All returns a snapshot of every registered analyzer.
func (r *AnalyzerRegistry) All() []*ProgramAnalyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ProgramAnalyzer, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, a)
	}
	return out
}
