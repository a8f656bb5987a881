package domain

import "testing"

func intp(v int) *int { return &v }

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		employees *int
		want      TeamTier
	}{
		{nil, TierUnknown},
		{intp(0), TierUnknown},
		{intp(50), TierSMB},
		{intp(250), TierGrowth},
		{intp(1000), TierMM},
		{intp(5000), TierENT},
	}
	for _, c := range cases {
		if got := ClassifyTier(c.employees); got != c.want {
			t.Errorf("ClassifyTier(%v) = %v, want %v", c.employees, got, c.want)
		}
	}
}

func TestTeamAlignmentScoreUnknownIsNA(t *testing.T) {
	cfg := DefaultTeamScoreConfig()
	if _, ok := TeamAlignmentScore(TierUnknown, TierSMB, cfg); ok {
		t.Fatal("expected N/A when account tier unknown")
	}
	if _, ok := TeamAlignmentScore(TierSMB, TierUnknown, cfg); ok {
		t.Fatal("expected N/A when rep tier unknown")
	}
}

func TestTeamAlignmentScoreDistances(t *testing.T) {
	cfg := DefaultTeamScoreConfig()
	score, ok := TeamAlignmentScore(TierMM, TierMM, cfg)
	if !ok || score != 1.00 {
		t.Fatalf("exact match expected 1.00, got %v", score)
	}
	score, ok = TeamAlignmentScore(TierMM, TierGrowth, cfg)
	if !ok || score != 0.60 {
		t.Fatalf("one level expected 0.60, got %v", score)
	}
	score, ok = TeamAlignmentScore(TierENT, TierSMB, cfg)
	if !ok || score != 0.05 {
		t.Fatalf("three level expected 0.05, got %v", score)
	}
}

func TestTeamAlignmentScoreReachingDownPenalty(t *testing.T) {
	cfg := DefaultTeamScoreConfig()
	// account is SMB (0), rep is Growth (1): rep reaches down 1 level.
	score, ok := TeamAlignmentScore(TierSMB, TierGrowth, cfg)
	if !ok {
		t.Fatal("expected score")
	}
	want := 0.60 - 0.15*1
	if score != want {
		t.Fatalf("expected %v, got %v", want, score)
	}
}
