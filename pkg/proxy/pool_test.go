package proxy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPool_AddAndNext(t *testing.T) {
	p := NewPool(Config{})
	if err := p.Add("http://proxy1:8080", "proxy2:8080"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != 2 {
		t.Fatalf("expected 2 proxies, got %d", p.Size())
	}

	first := p.Next()
	if first == nil || first.Host != "proxy1:8080" {
		t.Errorf("unexpected first proxy: %v", first)
	}

	// Missing scheme defaults to http.
	second := p.Next()
	if second == nil || second.Scheme != "http" || second.Host != "proxy2:8080" {
		t.Errorf("unexpected second proxy: %v", second)
	}

	// Round-robin wraps.
	third := p.Next()
	if third == nil || third.Host != "proxy1:8080" {
		t.Errorf("expected wrap-around to proxy1, got %v", third)
	}
}

func TestPool_EmptyNext(t *testing.T) {
	p := NewPool(Config{})
	if got := p.Next(); got != nil {
		t.Errorf("expected nil from empty pool, got %v", got)
	}
}

func TestPool_BenchAfterMaxFailures(t *testing.T) {
	p := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	if err := p.Add("http://bad:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := p.Next()
	if u == nil {
		t.Fatalf("expected a proxy")
	}

	_ = p.MarkFailure(u)
	if p.Next() == nil {
		t.Fatalf("one failure should not bench the proxy")
	}

	_ = p.MarkFailure(u)
	if got := p.Next(); got != nil {
		t.Errorf("expected all proxies benched, got %v", got)
	}
}

func TestPool_RevivalAfterCooldown(t *testing.T) {
	p := NewPool(Config{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	if err := p.Add("http://flaky:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := p.Next()
	_ = p.MarkFailure(u)
	if p.Next() != nil {
		t.Fatalf("expected proxy benched")
	}

	time.Sleep(20 * time.Millisecond)
	if p.Next() == nil {
		t.Errorf("expected proxy revived after cooldown")
	}
}

func TestPool_MarkSuccessReducesFailures(t *testing.T) {
	p := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	if err := p.Add("http://ok:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := p.Next()
	_ = p.MarkFailure(u)
	_ = p.MarkSuccess(u)
	_ = p.MarkFailure(u)

	// failure, success, failure nets one failure: still healthy.
	if p.Next() == nil {
		t.Errorf("expected proxy to remain healthy")
	}
}

func TestPool_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# comment\nhttp://proxy1:8080\n\nproxy2:9090\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewPool(Config{})
	if err := p.LoadFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != 2 {
		t.Errorf("expected 2 proxies, got %d", p.Size())
	}
}
