// Package problem builds the MILP (relaxed as a bounded LP, per spec §4.5)
// for one pass: decision variables, the penalty-weighted objective, and the
// assignment/capacity/balance constraints. Binary selection is relaxed to
// [0,1] here; internal/assign/solve rounds the LP relaxation back to a
// discrete assignment.
package problem

// VarKind distinguishes the three variable families of spec §4.5.1.
type VarKind int

const (
	VarAssignment VarKind = iota
	VarBalanceSlack
	VarFeasibilitySlack
)

// Zone names one of the three-tier balance slack directions.
type Zone string

const (
	ZoneAlphaOver  Zone = "alpha_over"
	ZoneAlphaUnder Zone = "alpha_under"
	ZoneBetaOver   Zone = "beta_over"
	ZoneBetaUnder  Zone = "beta_under"
	ZoneMOver      Zone = "m_over"
	ZoneMUnder     Zone = "m_under"
)

// Var describes one LP column.
type Var struct {
	Kind      VarKind
	AccountID string // VarAssignment
	RepID     string // VarAssignment, VarBalanceSlack, VarFeasibilitySlack
	Metric    string // VarBalanceSlack: "arr", "atr", "pipeline", "tier:SMB", ...
	Zone      Zone   // VarBalanceSlack
}

// Op is a constraint's relational operator.
type Op int

const (
	OpEqual Op = iota
	OpLessOrEqual
)

// Constraint is one row of the LP: Coeffs·x {=, ≤} RHS. Coeffs is sparse,
// keyed by column index into Problem.Vars.
type Constraint struct {
	Label  string
	Op     Op
	Coeffs map[int]float64
	RHS    float64
}

// Problem is one pass's complete LP: maximize Objective·x subject to
// Constraints, with 0 ≤ x ≤ UpperBound (UpperBound of +Inf encoded as a
// non-positive value, since every real bound here is positive).
type Problem struct {
	Vars        []Var
	Objective   []float64
	Constraints []Constraint
	UpperBound  []float64 // parallel to Vars; <= 0 means unbounded above

	// Index lookups populated by Build, used by the post-processor to find
	// a given (account, rep) variable's solved value.
	AssignmentIndex map[string]map[string]int // accountID -> repID -> column
}

func newProblem() *Problem {
	return &Problem{AssignmentIndex: make(map[string]map[string]int)}
}

func (p *Problem) addVar(v Var, objective, upperBound float64) int {
	idx := len(p.Vars)
	p.Vars = append(p.Vars, v)
	p.Objective = append(p.Objective, objective)
	p.UpperBound = append(p.UpperBound, upperBound)
	if v.Kind == VarAssignment {
		if p.AssignmentIndex[v.AccountID] == nil {
			p.AssignmentIndex[v.AccountID] = make(map[string]int)
		}
		p.AssignmentIndex[v.AccountID][v.RepID] = idx
	}
	return idx
}
