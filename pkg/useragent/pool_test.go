package useragent

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPool_GetSequential(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for _, want := range []string{"A", "B", "C", "A"} {
		if got := p.GetSequential(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool([]string{"  ", ""})
	if len(p.GetAll()) != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), len(p.GetAll()))
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_GetRandom(t *testing.T) {
	p := NewPool([]string{"A", "B"}).WithStrategy(StrategyRandom)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[p.Next()] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B in random selection, saw %v", seen)
	}
}

func TestPool_Concurrency(t *testing.T) {
	p := NewPool([]string{"A", "B", "C", "D"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.GetSequential()
			_ = p.GetRandom()
		}()
	}
	wg.Wait()

	if got := p.counter.Load(); got < 100 {
		t.Errorf("expected counter to be at least 100, got %d", got)
	}
}

func TestPool_GetAllIsCopy(t *testing.T) {
	p := NewPool([]string{"A"})
	all := p.GetAll()
	all[0] = "mutated"
	if p.GetSequential() != "A" {
		t.Error("GetAll should return a copy")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uas.txt")
	content := "# desktop identities\nUA-One\n\n  UA-Two  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := p.GetAll()
	if len(all) != 2 || all[0] != "UA-One" || all[1] != "UA-Two" {
		t.Errorf("unexpected pool contents: %v", all)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
