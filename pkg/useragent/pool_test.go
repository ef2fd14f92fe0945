package useragent

import (
	"sync"
	"testing"
)

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(nil)
	if p.Size() == 0 {
		t.Fatalf("expected default agents")
	}
	if p.Next() == "" {
		t.Errorf("expected non-empty agent")
	}
}

func TestNewPool_CopiesInput(t *testing.T) {
	agents := []string{"agent-a", "agent-b"}
	p := NewPool(agents)

	agents[0] = "mutated"
	if got := p.Next(); got != "agent-a" {
		t.Errorf("pool must not observe external mutation, got %q", got)
	}
}

func TestPool_NextRoundRobin(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})

	got := []string{p.Next(), p.Next(), p.Next(), p.Next()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("round-robin position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"a", "b"})
	for i := 0; i < 20; i++ {
		ua := p.Random()
		if ua != "a" && ua != "b" {
			t.Fatalf("unexpected agent %q", ua)
		}
	}
}

func TestPool_ConcurrentNext(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p.Next() == "" {
					t.Error("empty agent under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}
