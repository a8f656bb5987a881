// Package lpsolver provides the concrete solve.Solver implementations: an
// in-process solver over gonum's dense simplex, and an HTTP client to a
// remote solver service.
package lpsolver

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/fieldcompass/territory-engine/internal/assign/problem"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

// Gonum is the in-process "browser" oracle: it relaxes the MILP to a
// bounded LP and solves it with gonum's simplex implementation. Binary
// decoding happens downstream in the post-processor, not here.
type Gonum struct{}

func (Gonum) Name() string { return "gonum" }

// Solve converts p into gonum's required standard form (minimize c^T x
// subject to A x = b, x ≥ 0) by adding one slack column per ≤ constraint
// and one auxiliary column per finite variable upper bound, then runs
// lp.Simplex.
func (Gonum) Solve(ctx context.Context, p *problem.Problem, timeout time.Duration) (solve.Solution, error) {
	if err := ctx.Err(); err != nil {
		return solve.Solution{}, err
	}

	nOriginal := len(p.Vars)

	extraCols := 0
	for _, c := range p.Constraints {
		if c.Op == problem.OpLessOrEqual {
			extraCols++
		}
	}
	boundedVars := 0
	for _, ub := range p.UpperBound {
		if ub > 0 {
			boundedVars++
		}
	}
	totalCols := nOriginal + extraCols + boundedVars
	totalRows := len(p.Constraints) + boundedVars

	dense := make([]float64, totalRows*totalCols)
	b := make([]float64, totalRows)
	row := func(i int) []float64 { return dense[i*totalCols : (i+1)*totalCols] }

	nextCol := nOriginal
	for i, c := range p.Constraints {
		r := row(i)
		for col, coeff := range c.Coeffs {
			r[col] = coeff
		}
		if c.Op == problem.OpLessOrEqual {
			r[nextCol] = 1
			nextCol++
		}
		b[i] = c.RHS
	}

	rowIdx := len(p.Constraints)
	for varIdx, ub := range p.UpperBound {
		if ub <= 0 {
			continue
		}
		r := row(rowIdx)
		r[varIdx] = 1
		r[nextCol] = 1
		nextCol++
		b[rowIdx] = ub
		rowIdx++
	}

	c := make([]float64, totalCols)
	for i, coeff := range p.Objective {
		// gonum minimizes; the problem's objective is a maximization.
		c[i] = -coeff
	}

	ctxDone := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { close(ctxDone) })
	defer timer.Stop()

	A := mat.NewDense(totalRows, totalCols, dense)
	optF, x, err := lp.Simplex(c, A, b, 0, nil)
	select {
	case <-ctxDone:
		if err != nil {
			return solve.Solution{Status: solve.StatusTimeout}, fmt.Errorf("solve timed out: %w", err)
		}
	default:
	}
	if err != nil {
		return solve.Solution{}, fmt.Errorf("gonum simplex: %w", err)
	}

	return solve.Solution{
		Values:         x[:nOriginal],
		ObjectiveValue: -optF,
		Status:         solve.StatusOptimal,
	}, nil
}
