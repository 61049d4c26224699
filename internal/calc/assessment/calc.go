package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/collapse"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/damage"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/loads"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/risk"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/structure"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

type Position struct {
	X float64 `json:"x" validate:"gte=0,lte=1024"`
	Y float64 `json:"y" validate:"gte=0,lte=1024"`
}

// AnnotationInput carries a position in reference-image pixels.
type AnnotationInput struct {
	ID          string   `json:"id,omitempty"`
	IssueType   string   `json:"issue_type" validate:"required"`
	Position    Position `json:"position"`
	Description string   `json:"description,omitempty"`
}

type Request struct {
	AssessmentID      string            `json:"assessment_id,omitempty"`
	BuildingType      string            `json:"building_type" validate:"required"`
	Floors            int               `json:"number_of_floors" validate:"gte=1,lte=200"`
	Material          string            `json:"primary_material"`
	YearBuilt         int               `json:"year_built" validate:"gte=1800,lte=2035"`
	DamageTypes       []string          `json:"damage_types"`
	DamageDescription string            `json:"damage_description"`
	Latitude          float64           `json:"latitude"`
	Longitude         float64           `json:"longitude"`
	Annotations       []AnnotationInput `json:"annotations" validate:"dive"`
}

// RiskAssessment is the complete result for one request. It is not modified after
// Assess returns.
type RiskAssessment struct {
	AssessmentID       string                `json:"assessment_id,omitempty"`
	Building           building.Building     `json:"building"`
	Material           material.Properties   `json:"material"`
	MaterialFallback   bool                  `json:"material_fallback"`
	AgeYears           int                   `json:"building_age_years"`
	SafetyFactor       loads.SafetyFactor    `json:"safety_factor"`
	FailureProbability float64               `json:"failure_probability"`
	RiskLevel          risk.Level            `json:"risk_level"`
	RiskScore          int                   `json:"risk_score"`
	Confidence         risk.Confidence       `json:"confidence"`
	Contributions      risk.Contributions    `json:"score_contributions"`
	BaseLoad           float64               `json:"base_load_kn"`
	DamageMultiplier   float64               `json:"damage_multiplier"`
	NominalStress      float64               `json:"nominal_stress"`
	FailureTime        float64               `json:"failure_time"`
	AnalysisType       loads.Fidelity        `json:"analysis_type"`
	CriticalPoints     []loads.CriticalPoint `json:"critical_points"`
	CollapseFrames     []collapse.Frame      `json:"collapse_frames"`
	SafetyZones        []collapse.SafetyZone `json:"safety_zones"`
	DebrisFootprint    collapse.Footprint    `json:"debris_footprint"`
	DamageReport       damage.Report         `json:"damage_report"`
	Recommendations    []string              `json:"recommendations"`
	GeneratedAt        time.Time             `json:"generated_at"`
}

// Engine runs the assessment pipeline. It holds only immutable configuration and is
// safe for concurrent use.
type Engine struct {
	catalog   *material.Catalog
	estimator loads.Estimator
	clock     clockwork.Clock
	validate  *validator.Validate
}

type Option func(*Engine)

// WithClock sets the clock used for building age and generated_at.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func NewEngine(catalog *material.Catalog, estimator loads.Estimator, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		estimator: estimator,
		clock:     clockwork.NewRealClock(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Fidelity() loads.Fidelity { return e.estimator.Fidelity() }

// Prepare validates req and turns it into a descriptor and normalized annotations.
// usedFallback reports that the material was substituted by the catalog policy.
func (e *Engine) Prepare(req Request) (b building.Building, anns []damage.Annotation, usedFallback bool, err error) {
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return b, nil, false, &ValidationError{Fields: verrs}
		}
		return b, nil, false, fmt.Errorf("%w: %v", building.ErrInvalidInput, err)
	}

	typ, err := building.ParseType(req.BuildingType)
	if err != nil {
		return b, nil, false, err
	}

	if strings.TrimSpace(req.Material) == "" && !e.catalog.FallbackEnabled() {
		return b, nil, false, fmt.Errorf("%w: primary_material is required", building.ErrInvalidInput)
	}
	mat, usedFallback, err := e.catalog.Resolve(req.Material)
	if err != nil {
		return b, nil, false, err
	}

	types := make([]building.DamageType, 0, len(req.DamageTypes))
	for _, raw := range req.DamageTypes {
		t, err := building.ParseDamageType(raw)
		if err != nil {
			return b, nil, false, err
		}
		types = append(types, t)
	}

	anns = make([]damage.Annotation, 0, len(req.Annotations))
	for i, a := range req.Annotations {
		t, err := building.ParseDamageType(a.IssueType)
		if err != nil {
			return b, nil, false, fmt.Errorf("annotation %d: %w", i, err)
		}
		pos, err := damage.FromPixels(a.Position.X, a.Position.Y)
		if err != nil {
			return b, nil, false, fmt.Errorf("annotation %d: %w", i, err)
		}
		anns = append(anns, damage.Annotation{ID: a.ID, Type: t, Position: pos, Description: a.Description})
	}

	b = building.Building{
		Type:              typ,
		Floors:            req.Floors,
		Material:          mat,
		YearBuilt:         req.YearBuilt,
		DamageTypes:       types,
		DamageDescription: req.DamageDescription,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
	}
	if err := b.Validate(); err != nil {
		return building.Building{}, nil, false, err
	}
	return b, anns, usedFallback, nil
}

// Assess validates req and runs the full pipeline.
func (e *Engine) Assess(ctx context.Context, req Request) (*RiskAssessment, error) {
	b, anns, fallback, err := e.Prepare(req)
	if err != nil {
		return nil, err
	}
	ra, err := e.Run(ctx, b, anns)
	if err != nil {
		return nil, err
	}
	ra.AssessmentID = req.AssessmentID
	ra.MaterialFallback = fallback
	return ra, nil
}

// Run assesses an already validated descriptor. Each call builds its own model.
func (e *Engine) Run(ctx context.Context, b building.Building, anns []damage.Annotation) (*RiskAssessment, error) {
	now := e.clock.Now().UTC()
	age := b.Age(now.Year())

	props, err := e.catalog.Properties(b.Material, age)
	if err != nil {
		return nil, err
	}
	model, err := structure.Build(b, props)
	if err != nil {
		return nil, err
	}
	report := damage.Apply(model, anns)

	est, err := e.estimator.Estimate(ctx, loads.Input{
		Model:       model,
		Material:    props,
		Annotations: anns,
		Sources:     report.Sources,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate loads: %w", err)
	}

	sim := collapse.Simulate(model, est.FailureTime)

	annotated := make([]building.DamageType, len(anns))
	for i, a := range anns {
		annotated[i] = a.Type
	}
	summary := risk.Aggregate(risk.Input{
		AgeYears:           age,
		DamageTypes:        risk.DistinctDamage(b.DamageTypes, annotated...),
		SafetyFactor:       est.SafetyFactor,
		FailureProbability: est.FailureProbability,
		FailureTime:        est.FailureTime,
		Fidelity:           est.Fidelity,
	})

	return &RiskAssessment{
		Building:           b,
		Material:           props,
		AgeYears:           age,
		SafetyFactor:       est.SafetyFactor,
		FailureProbability: est.FailureProbability,
		RiskLevel:          summary.Level,
		RiskScore:          summary.Score,
		Confidence:         summary.Confidence,
		Contributions:      summary.Contributions,
		BaseLoad:           est.BaseLoad,
		DamageMultiplier:   est.DamageMultiplier,
		NominalStress:      est.NominalStress,
		FailureTime:        est.FailureTime,
		AnalysisType:       est.Fidelity,
		CriticalPoints:     est.CriticalPoints,
		CollapseFrames:     sim.Frames,
		SafetyZones:        sim.Zones,
		DebrisFootprint:    sim.Debris,
		DamageReport:       report,
		Recommendations:    risk.Recommendations(summary.Level),
		GeneratedAt:        now,
	}, nil
}

// ValidationError lists the request fields that failed their tags.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (v *ValidationError) Error() string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Namespace()
	}
	return fmt.Sprintf("%s: invalid fields %s", building.ErrInvalidInput, strings.Join(names, ", "))
}

func (v *ValidationError) Unwrap() error { return building.ErrInvalidInput }
