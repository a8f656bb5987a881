package problem

import (
	"testing"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

func TestBuildAssignmentConstraintCoversEveryAccount(t *testing.T) {
	accounts := []domain.Account{{AccountID: "A1", ARR: 100}, {AccountID: "A2", ARR: 200}}
	reps := []domain.Rep{{RepID: "R1"}, {RepID: "R2"}}

	p, err := Build(Input{
		Accounts:    accounts,
		Reps:        reps,
		Coefficient: func(a domain.Account, r domain.Rep) float64 { return 1 },
		Penalties:   domain.DefaultPenaltyConstants(),
		Intensity:   domain.IntensityNormal,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	assignConstraints := 0
	for _, c := range p.Constraints {
		if c.Op == OpEqual && len(c.Coeffs) == 2 {
			assignConstraints++
		}
	}
	if assignConstraints != 2 {
		t.Fatalf("expected 2 assignment constraints, got %d", assignConstraints)
	}
	if len(p.AssignmentIndex["A1"]) != 2 || len(p.AssignmentIndex["A2"]) != 2 {
		t.Fatalf("expected both accounts to have 2 eligible reps each")
	}
}

func TestBuildSegregatesStrategicAccounts(t *testing.T) {
	accounts := []domain.Account{
		{AccountID: "A1", IsStrategic: true, ARR: 1000},
		{AccountID: "A2", IsStrategic: false, ARR: 1000},
	}
	reps := []domain.Rep{{RepID: "R1", IsStrategicRep: true}, {RepID: "R2", IsStrategicRep: false}}

	p, err := Build(Input{
		Accounts:    accounts,
		Reps:        reps,
		Coefficient: func(a domain.Account, r domain.Rep) float64 { return 1 },
		Penalties:   domain.DefaultPenaltyConstants(),
		Intensity:   domain.IntensityNormal,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, ok := p.AssignmentIndex["A1"]["R2"]; ok {
		t.Fatal("strategic account must not pair with non-strategic rep")
	}
	if _, ok := p.AssignmentIndex["A2"]["R1"]; ok {
		t.Fatal("non-strategic account must not pair with strategic rep")
	}
}

func TestBuildNoRepsErrors(t *testing.T) {
	_, err := Build(Input{Accounts: []domain.Account{{AccountID: "A1"}}, Coefficient: func(domain.Account, domain.Rep) float64 { return 0 }})
	if err == nil {
		t.Fatal("expected error for zero reps")
	}
}

func TestBuildCapacityConstraintAddsFeasibilitySlack(t *testing.T) {
	accounts := []domain.Account{{AccountID: "A1", ARR: 5_000_000}}
	reps := []domain.Rep{{RepID: "R1"}}

	p, err := Build(Input{
		Accounts:               accounts,
		Reps:                   reps,
		Coefficient:            func(domain.Account, domain.Rep) float64 { return 1 },
		CapacityHardCapEnabled: true,
		HardCapARR:             1_000_000,
		Penalties:              domain.DefaultPenaltyConstants(),
		Intensity:              domain.IntensityNormal,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	found := false
	for _, v := range p.Vars {
		if v.Kind == VarFeasibilitySlack && v.RepID == "R1" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a feasibility slack variable for R1")
	}
}
