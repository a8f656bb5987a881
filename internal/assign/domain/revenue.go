package domain

// AccountARR returns the account's ARR by the fixed priority
// hierarchy_bookings_arr ∥ calculated_arr ∥ arr ∥ 0. This exact function
// must be used everywhere ARR is consulted (loader, scoring, metrics) to
// avoid double counting.
func AccountARR(a Account) float64 {
	if a.HierarchyBookingsARR != nil {
		return ClampNonNegative(*a.HierarchyBookingsARR)
	}
	if a.CalculatedARR != nil {
		return ClampNonNegative(*a.CalculatedARR)
	}
	return ClampNonNegative(a.ARR)
}

// AccountATR returns max(0, Computed.AggregatedATR) when the loader has set
// that rollup (direct + children) to a nonzero value, else max(0, raw ATR).
func AccountATR(a Account) float64 {
	if a.Computed.AggregatedATR != 0 {
		return ClampNonNegative(a.Computed.AggregatedATR)
	}
	return ClampNonNegative(a.ATR)
}

// ClampNonNegative clamps negative or NaN values to zero. Callers that reach
// this path with an out-of-invariant input are expected to have already
// emitted a NumericWarning via the loader's warning collector.
func ClampNonNegative(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	return v
}

// oppEligibleForPipeline reports whether an opportunity contributes to an
// account's pipeline_value: always for prospects, and only Expansion /
// New Subscription types for customers. Renewal opps never contribute to
// pipeline (they contribute to ATR instead).
func oppEligibleForPipeline(op Opportunity, accountIsCustomer bool) bool {
	if !accountIsCustomer {
		return true
	}
	switch op.Type {
	case OppExpansion, OppNewSubscription:
		return true
	default:
		return false
	}
}

// PipelineOf sums the eligible opportunities for an account.
func PipelineOf(accountIsCustomer bool, opps []Opportunity) float64 {
	var total float64
	for _, op := range opps {
		if oppEligibleForPipeline(op, accountIsCustomer) {
			total += ClampNonNegative(op.Value())
		}
	}
	return total
}

// IsCustomer implements `is_customer(a) = account_arr(a) > 0 ∨ flag ∨
// has_customer_descendant(a)`. hasCustomerDescendant is resolved by the
// loader once children are known and passed in explicitly here to keep this
// function pure.
func IsCustomer(a Account, hasCustomerDescendant bool) bool {
	return AccountARR(a) > 0 || a.IsCustomerFlag || hasCustomerDescendant
}
