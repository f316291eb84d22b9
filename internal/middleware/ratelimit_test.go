package middleware

import (
	"testing"
	"time"
)

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "service:ingestion"
	for i := 0; i < 5; i++ {
		if !s.Allow(key) {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}

	if s.Allow(key) {
		t.Fatalf("expected limiter to block after burst consumed")
	}
}

func TestLimiterStore_IndependentKeys(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("service:ingestion") {
		t.Fatal("first event for ingestion should pass")
	}
	if s.Allow("service:ingestion") {
		t.Fatal("second immediate event for ingestion should block")
	}
	// A different caller has its own budget.
	if !s.Allow("service:enrichment") {
		t.Fatal("first event for enrichment should pass")
	}
}
