package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversAllIterations(t *testing.T) {
	cfg := Config{Enabled: true, Workers: 4, MinGrain: 1}
	n := 1000
	seen := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, cfg)
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("iteration %d executed %d times", i, c)
		}
	}
}

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}
	sum := 0
	For(10, func(i int) { sum += i }, cfg)
	if sum != 45 {
		t.Errorf("expected 45, got %d", sum)
	}
}

func TestForRangeDisjointChunks(t *testing.T) {
	cfg := Config{Enabled: true, Workers: 3, MinGrain: 4}
	n := 100
	var total atomic.Int64
	ForRange(n, func(start, end int) {
		if start < 0 || end > n || start >= end {
			t.Errorf("bad chunk [%d, %d)", start, end)
		}
		total.Add(int64(end - start))
	}, cfg)
	if total.Load() != int64(n) {
		t.Errorf("chunks covered %d iterations, want %d", total.Load(), n)
	}
}

func TestForZeroIterations(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	if called {
		t.Error("f called for n=0")
	}
}
