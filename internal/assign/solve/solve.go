// Package solve defines the pluggable solver oracle contract (spec §4.6)
// and the browser/cloud dispatch cascade in front of it.
package solve

import (
	"context"
	"time"

	"github.com/fieldcompass/territory-engine/infrastructure/resilience"
	coreservice "github.com/fieldcompass/territory-engine/internal/app/core/service"
	"github.com/fieldcompass/territory-engine/internal/assign/problem"
)

// Status classifies how a solve attempt ended.
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusIncumbent Status = "incumbent" // timed out, best-so-far returned
	StatusTimeout  Status = "timeout"    // timed out with no incumbent
	StatusError    Status = "error"
)

// Solution is one solver invocation's result: Values is parallel to
// problem.Problem.Vars.
type Solution struct {
	Values         []float64
	ObjectiveValue float64
	Status         Status
}

// Solver is the pluggable oracle contract every backend implements.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *problem.Problem, timeout time.Duration) (Solution, error)
}

// Mode selects the dispatch policy of spec §4.6: browser tries in-process
// solvers first, falling back to remote; cloud always uses remote.
type Mode string

const (
	ModeBrowser Mode = "browser"
	ModeCloud   Mode = "cloud"
)

// Dispatcher cascades through a list of local solvers before falling back
// to a remote one, per spec §4.6 "browser: try an in-process LP solver; on
// memory/timeout error, fall back to another local solver; on second
// failure, fall back to the remote solver."
type Dispatcher struct {
	Local  []Solver
	Remote Solver

	// Hooks fires around every individual solver attempt in the cascade, not
	// just the one that ultimately wins, so callers can observe local
	// failures that led to a remote fallback.
	Hooks coreservice.DispatchHooks

	// remoteBreaker fails fast on the remote oracle once it's been unhealthy
	// for a run of attempts, instead of paying its timeout on every dispatch.
	remoteBreaker *resilience.CircuitBreaker
}

// NewDispatcher builds a Dispatcher from an ordered list of local solvers
// and one remote fallback.
func NewDispatcher(remote Solver, local ...Solver) *Dispatcher {
	return &Dispatcher{
		Local:         local,
		Remote:        remote,
		remoteBreaker: resilience.New(resilience.DefaultConfig()),
	}
}

// Solve runs mode's cascade. ModeCloud skips local solvers entirely.
func (d *Dispatcher) Solve(ctx context.Context, p *problem.Problem, mode Mode, timeout time.Duration) (Solution, string, error) {
	if mode == ModeBrowser {
		var lastErr error
		for _, s := range d.Local {
			sol, err := d.attempt(ctx, s, p, timeout, string(mode))
			if err == nil {
				return sol, s.Name(), nil
			}
			lastErr = err
		}
		if d.Remote == nil {
			return Solution{}, "", lastErr
		}
	}
	if d.Remote == nil {
		return Solution{}, "", errNoRemoteConfigured
	}
	sol, err := d.attemptRemote(ctx, p, timeout, string(mode))
	return sol, d.Remote.Name(), err
}

// attemptRemote routes the remote solver through a circuit breaker so a
// string of failures opens the circuit and short-circuits later dispatches
// with ErrCircuitOpen rather than waiting out each one's timeout.
func (d *Dispatcher) attemptRemote(ctx context.Context, p *problem.Problem, timeout time.Duration, mode string) (Solution, error) {
	var sol Solution
	err := d.remoteBreaker.Execute(ctx, func() error {
		var attemptErr error
		sol, attemptErr = d.attempt(ctx, d.Remote, p, timeout, mode)
		return attemptErr
	})
	return sol, err
}

func (d *Dispatcher) attempt(ctx context.Context, s Solver, p *problem.Problem, timeout time.Duration, mode string) (Solution, error) {
	done := coreservice.StartDispatch(ctx, d.Hooks, map[string]string{"solver": s.Name(), "mode": mode})
	sol, err := s.Solve(ctx, p, timeout)
	done(err)
	return sol, err
}

var errNoRemoteConfigured = solveError("no remote solver configured and all local solvers failed")

type solveError string

func (e solveError) Error() string { return string(e) }
