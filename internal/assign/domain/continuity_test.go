package domain

import (
	"testing"
	"time"
)

func TestContinuityScoreZeroCases(t *testing.T) {
	cfg := DefaultContinuityConfig()
	now := time.Now()

	// No owner.
	a := Account{}
	r := Rep{RepID: "R1"}
	if got := ContinuityScore(a, r, now, cfg); got != 0 {
		t.Fatalf("expected 0 with no owner, got %v", got)
	}

	// Owner mismatch.
	a = Account{OwnerID: "R2"}
	if got := ContinuityScore(a, r, now, cfg); got != 0 {
		t.Fatalf("expected 0 on owner mismatch, got %v", got)
	}

	// Backfill source owner.
	a = Account{OwnerID: "R1"}
	r = Rep{RepID: "R1", IsBackfillSource: true}
	if got := ContinuityScore(a, r, now, cfg); got != 0 {
		t.Fatalf("expected 0 for backfill source owner, got %v", got)
	}
}

func TestContinuityScoreFullTenure(t *testing.T) {
	cfg := DefaultContinuityConfig()
	now := time.Now()
	changed := now.Add(-800 * 24 * time.Hour)
	a := Account{OwnerID: "R1", OwnerChangeDate: &changed, OwnersLifetimeCount: 1, ARR: 2_000_000}
	r := Rep{RepID: "R1"}

	got := ContinuityScore(a, r, now, cfg)
	want := cfg.BaseContinuity + cfg.TenureWeight + cfg.StabilityWeight + cfg.ValueWeight
	if got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("expected max continuity %v, got %v", want, got)
	}
}
