package lpsolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldcompass/territory-engine/infrastructure/httputil"
	"github.com/fieldcompass/territory-engine/infrastructure/ratelimit"
	"github.com/fieldcompass/territory-engine/internal/assign/problem"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

// Remote is the "cloud" oracle: it ships the LP to an external solver
// service over HTTP and decodes its response. It is always used in
// solve.ModeCloud and as the final fallback of solve.ModeBrowser.
type Remote struct {
	client  *ratelimit.RateLimitedClient
	baseURL string
}

// NewRemote builds a Remote client against baseURL, reusing the package's
// standard HTTP client configuration (TLS 1.2 floor, bounded timeout) and
// capping outbound solve requests so a tight retry loop elsewhere in the
// engine can't flood the external solver service.
func NewRemote(baseURL string, timeout time.Duration) (*Remote, error) {
	client, normalized, err := httputil.NewClientWithBaseURL(httputil.ClientConfig{
		BaseURL: baseURL,
		Timeout: timeout,
	}, httputil.DefaultClientDefaults())
	if err != nil {
		return nil, fmt.Errorf("configure remote solver client: %w", err)
	}
	client.Transport = httputil.DefaultTransportWithMinTLS12()
	limited := ratelimit.NewRateLimitedClient(client, ratelimit.RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
	})
	return &Remote{client: limited, baseURL: normalized}, nil
}

func (r *Remote) Name() string { return "remote" }

type solveRequest struct {
	Objective   []float64           `json:"objective"`
	UpperBound  []float64           `json:"upper_bound"`
	Constraints []constraintPayload `json:"constraints"`
}

type constraintPayload struct {
	Op     string             `json:"op"`
	Coeffs map[string]float64 `json:"coeffs"`
	RHS    float64            `json:"rhs"`
}

type solveResponse struct {
	Values         []float64 `json:"values"`
	ObjectiveValue float64   `json:"objective_value"`
	Status         string    `json:"status"`
}

// Solve encodes p as JSON, posts it to {baseURL}/v1/solve, and decodes the
// result. The remote service owns the actual MILP/LP solving; this client
// is a thin transport.
func (r *Remote) Solve(ctx context.Context, p *problem.Problem, timeout time.Duration) (solve.Solution, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := solveRequest{Objective: p.Objective, UpperBound: p.UpperBound}
	for _, c := range p.Constraints {
		coeffs := make(map[string]float64, len(c.Coeffs))
		for idx, v := range c.Coeffs {
			coeffs[fmt.Sprintf("%d", idx)] = v
		}
		op := "eq"
		if c.Op == problem.OpLessOrEqual {
			op = "le"
		}
		req.Constraints = append(req.Constraints, constraintPayload{Op: op, Coeffs: coeffs, RHS: c.RHS})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return solve.Solution{}, fmt.Errorf("encode solve request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/solve", bytes.NewReader(body))
	if err != nil {
		return solve.Solution{}, fmt.Errorf("build solve request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return solve.Solution{}, fmt.Errorf("remote solve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return solve.Solution{}, fmt.Errorf("remote solve: status %d", resp.StatusCode)
	}

	var out solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return solve.Solution{}, fmt.Errorf("decode solve response: %w", err)
	}

	status := solve.StatusOptimal
	switch out.Status {
	case "timeout":
		status = solve.StatusTimeout
	case "incumbent":
		status = solve.StatusIncumbent
	case "error":
		status = solve.StatusError
	}

	return solve.Solution{Values: out.Values, ObjectiveValue: out.ObjectiveValue, Status: status}, nil
}
