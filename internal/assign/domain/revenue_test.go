package domain

import "testing"

func TestAccountARRPriority(t *testing.T) {
	hb := 500.0
	calc := 300.0
	a := Account{HierarchyBookingsARR: &hb, CalculatedARR: &calc, ARR: 100}
	if got := AccountARR(a); got != 500 {
		t.Fatalf("expected hierarchy_bookings_arr to win, got %v", got)
	}

	a2 := Account{CalculatedARR: &calc, ARR: 100}
	if got := AccountARR(a2); got != 300 {
		t.Fatalf("expected calculated_arr to win, got %v", got)
	}

	a3 := Account{ARR: 100}
	if got := AccountARR(a3); got != 100 {
		t.Fatalf("expected raw arr, got %v", got)
	}

	a4 := Account{ARR: -50}
	if got := AccountARR(a4); got != 0 {
		t.Fatalf("expected negative arr clamped to 0, got %v", got)
	}
}

func TestPipelineOf(t *testing.T) {
	na1, amt := 100.0, 50.0
	opps := []Opportunity{
		{Type: OppExpansion, NetARR: &na1},
		{Type: OppRenewal, Amount: &amt},
		{Type: OppNewSubscription, Amount: &amt},
	}

	customerTotal := PipelineOf(true, opps)
	if customerTotal != 150 {
		t.Fatalf("expected renewal excluded for customers, got %v", customerTotal)
	}

	prospectTotal := PipelineOf(false, opps)
	if prospectTotal != 200 {
		t.Fatalf("expected all opps counted for prospects, got %v", prospectTotal)
	}
}
