package predicate

import "testing"

func TestDefaultSalesToolsPredicate(t *testing.T) {
	e := New()

	ok, err := e.Eval(DefaultSalesToolsPredicate, AccountFields{ARR: 5000}, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected low-ARR account to match sales tools predicate")
	}

	ok, err = e.Eval(DefaultSalesToolsPredicate, AccountFields{ARR: 50000}, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected high-ARR account to not match")
	}
}

func TestEvalCustomPredicate(t *testing.T) {
	e := New()
	ok, err := e.Eval("account.is_strategic && account.tier === 'ENT'", AccountFields{IsStrategic: true, Tier: "ENT"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected predicate to match")
	}
}

func TestEvalCompileErrorReturnsError(t *testing.T) {
	e := New()
	_, err := e.Eval("this is not js (((", AccountFields{}, 0)
	if err == nil {
		t.Fatal("expected compile error")
	}
}

func TestEvalThrowingScriptReturnsError(t *testing.T) {
	e := New()
	_, err := e.Eval("throw new Error('boom')", AccountFields{}, 0)
	if err == nil {
		t.Fatal("expected runtime error")
	}
}
