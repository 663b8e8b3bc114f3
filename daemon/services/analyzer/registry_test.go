package analyzer

import (
	"context"
	"sync"
	"testing"
)

func TestAnalyzerRegistry_GetOrCreateReusesExisting(t *testing.T) {
	var created int
	var mu sync.Mutex
	registry := NewAnalyzerRegistry(context.Background(), func(programName string) *ProgramAnalyzer {
		mu.Lock()
		created++
		mu.Unlock()
		return NewProgramAnalyzer(programName, nil, nil, 0)
	})

	a1 := registry.GetOrCreate("X")
	a2 := registry.GetOrCreate("X")

	if a1 != a2 {
		t.Fatal("expected the same analyzer instance for repeated calls with the same program")
	}
	if created != 1 {
		t.Fatalf("expected factory invoked exactly once, got %d", created)
	}
}

func TestAnalyzerRegistry_ConcurrentCreateIsRaceFree(t *testing.T) {
	var created int
	var mu sync.Mutex
	registry := NewAnalyzerRegistry(context.Background(), func(programName string) *ProgramAnalyzer {
		mu.Lock()
		created++
		mu.Unlock()
		return NewProgramAnalyzer(programName, nil, nil, 0)
	})

	var wg sync.WaitGroup
	results := make([]*ProgramAnalyzer, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = registry.GetOrCreate("Y")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("expected every concurrent GetOrCreate call to return the same analyzer")
		}
	}
	if created != 1 {
		t.Fatalf("expected factory invoked exactly once under concurrency, got %d", created)
	}
}

func TestAnalyzerRegistry_AllReturnsSnapshot(t *testing.T) {
	registry := NewAnalyzerRegistry(context.Background(), func(programName string) *ProgramAnalyzer {
		return NewProgramAnalyzer(programName, nil, nil, 0)
	})
	registry.GetOrCreate("X")
	registry.GetOrCreate("Y")

	all := registry.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 analyzers, got %d", len(all))
	}
}
