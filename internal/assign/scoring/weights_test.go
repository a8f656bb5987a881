package scoring

import (
	"math"
	"testing"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDeriveWeightsEmptyUsesDefaults(t *testing.T) {
	w := DeriveWeights(nil, true)
	if !almostEqual(w.Continuity, 0.35) || !almostEqual(w.Geography, 0.35) || !almostEqual(w.Team, 0.30) {
		t.Fatalf("unexpected customer defaults: %+v", w)
	}

	w = DeriveWeights(nil, false)
	if !almostEqual(w.Continuity, 0.20) || !almostEqual(w.Geography, 0.45) || !almostEqual(w.Team, 0.35) {
		t.Fatalf("unexpected prospect defaults: %+v", w)
	}
}

func TestDeriveWeightsSumsToOne(t *testing.T) {
	priorities := []domain.PriorityItem{
		domain.PriorityTeamAlignment,
		domain.PriorityGeoAndContinuity,
		domain.PriorityResidual,
	}
	w := DeriveWeights(priorities, true)
	total := w.Continuity + w.Geography + w.Team
	if !almostEqual(total, 1.0) {
		t.Fatalf("weights do not sum to 1: %+v (total=%v)", w, total)
	}
	if w.Continuity <= 0 || w.Geography <= 0 {
		t.Fatalf("expected geo_and_continuity split to populate both: %+v", w)
	}
}

func TestCoefficientRedistributesOnNAteam(t *testing.T) {
	w := Weights{Continuity: 0.35, Geography: 0.35, Team: 0.30}
	withTeam := Coefficient(w, 0.8, 0.6, ptr(0.5), 0)
	withoutTeam := Coefficient(w, 0.8, 0.6, nil, 0)
	if almostEqual(withTeam, withoutTeam) {
		t.Fatalf("expected different coefficients with/without team score")
	}
	// redistribution must preserve total weight mass: recompute expected.
	wC, wG := redistribute(w)
	if !almostEqual(wC+wG, w.Continuity+w.Geography+w.Team) {
		t.Fatalf("redistribution changed total weight mass")
	}
}

func ptr(v float64) *float64 { return &v }
