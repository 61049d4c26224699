package loads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/damage"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/structure"
)

// SolverEstimator delegates the stress field to an external finite-element service and
// derives the safety figures the same way Calculate does.
type SolverEstimator struct {
	baseURL    string
	httpClient *http.Client
	observe    func(outcome string)
}

type SolverOption func(*SolverEstimator)

// WithObserver receives "success" or "error" after every solver request.
func WithObserver(fn func(outcome string)) SolverOption {
	return func(s *SolverEstimator) { s.observe = fn }
}

func NewSolverEstimator(baseURL string, timeout time.Duration, opts ...SolverOption) *SolverEstimator {
	s := &SolverEstimator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		observe:    func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SolverEstimator) Fidelity() Fidelity { return HighFidelity }

type solverRequest struct {
	Floors      int                   `json:"floors"`
	LengthM     float64               `json:"length_m"`
	WidthM      float64               `json:"width_m"`
	HeightM     float64               `json:"height_m"`
	Material    material.Properties   `json:"material"`
	Components  []structure.Component `json:"components"`
	Annotations []damage.Annotation   `json:"annotations"`
}

type solverResponse struct {
	NominalStressKPa   float64   `json:"nominal_stress_kpa"`
	ComponentStressKPa []float64 `json:"component_stress_kpa"`
}

func (s *SolverEstimator) Estimate(ctx context.Context, in Input) (Estimate, error) {
	if in.Model == nil {
		return Estimate{}, fmt.Errorf("%w: no structural model", ErrInvalidEstimate)
	}
	res, err := s.solve(ctx, in)
	if err != nil {
		s.observe("error")
		return Estimate{}, err
	}
	s.observe("success")

	if len(res.ComponentStressKPa) != len(in.Model.Components) {
		return Estimate{}, fmt.Errorf("%w: solver returned %d component stresses for %d components",
			ErrInvalidEstimate, len(res.ComponentStressKPa), len(in.Model.Components))
	}
	base := BaseLoad(in.Model.Building.Floors)
	mult := DamageMultiplier(in.Annotations)
	return finish(in, base, mult, res.NominalStressKPa, res.ComponentStressKPa, HighFidelity), nil
}

func (s *SolverEstimator) solve(ctx context.Context, in Input) (solverResponse, error) {
	body, err := json.Marshal(solverRequest{
		Floors:      in.Model.Building.Floors,
		LengthM:     in.Model.Length,
		WidthM:      in.Model.Width,
		HeightM:     in.Model.Height,
		Material:    in.Material,
		Components:  in.Model.Components,
		Annotations: in.Annotations,
	})
	if err != nil {
		return solverResponse{}, fmt.Errorf("encode solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/estimate", bytes.NewReader(body))
	if err != nil {
		return solverResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return solverResponse{}, fmt.Errorf("solver request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return solverResponse{}, fmt.Errorf("solver error: status %d: %s", resp.StatusCode, msg)
	}

	var out solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return solverResponse{}, fmt.Errorf("decode solver response: %w", err)
	}
	return out, nil
}

// Availability is the outcome of the startup probe.
type Availability struct {
	Fidelity Fidelity
	Reason   string
}

// Select probes the solver once and returns the estimator to use for the process
// lifetime. Without a reachable solver it returns SimplifiedEstimator.
func Select(ctx context.Context, baseURL string, timeout time.Duration, opts ...SolverOption) (Estimator, Availability) {
	if baseURL == "" {
		return SimplifiedEstimator{}, Availability{Fidelity: Simplified, Reason: "no solver configured"}
	}
	s := NewSolverEstimator(baseURL, timeout, opts...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return SimplifiedEstimator{}, Availability{Fidelity: Simplified, Reason: err.Error()}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SimplifiedEstimator{}, Availability{Fidelity: Simplified, Reason: fmt.Sprintf("solver unreachable: %v", err)}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SimplifiedEstimator{}, Availability{Fidelity: Simplified, Reason: fmt.Sprintf("solver health status %d", resp.StatusCode)}
	}
	return s, Availability{Fidelity: HighFidelity, Reason: "solver healthy"}
}
