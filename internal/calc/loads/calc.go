package loads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/damage"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/structure"
)

const (
	Gravity = 9.81
	// FloorLoadKN is the kN-equivalent per floor before gravity, over a 1 m2 tributary area.
	FloorLoadKN = 3.0
	// FailureStrain is the reference strain for the failure probability curve.
	FailureStrain = 0.01

	CriticalRatio = 0.8
	HighRatio     = 0.9

	MinFailureTimeS = 1.0
	MaxFailureTimeS = 10.0
)

type Fidelity string

const (
	Simplified   Fidelity = "simplified"
	HighFidelity Fidelity = "high_fidelity"
)

var ErrInvalidEstimate = errors.New("invalid estimate")

type Input struct {
	Model       *structure.Model
	Material    material.Properties
	Annotations []damage.Annotation
	// Sources maps component index to the first annotation that touched it, -1 for none.
	Sources []int
}

// SafetyFactor is strength over nominal stress. Unbounded marks zero stress.
type SafetyFactor struct {
	Value     float64
	Unbounded bool
}

func (s SafetyFactor) MarshalJSON() ([]byte, error) {
	if s.Unbounded || math.IsInf(s.Value, 0) || math.IsNaN(s.Value) {
		return []byte(`"unbounded"`), nil
	}
	return json.Marshal(s.Value)
}

func (s *SafetyFactor) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str != "unbounded" {
			return fmt.Errorf("safety factor: unexpected %q", str)
		}
		*s = SafetyFactor{Unbounded: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("safety factor: %w", err)
	}
	*s = SafetyFactor{Value: v}
	return nil
}

// Below reports whether the factor is finite and under limit.
func (s SafetyFactor) Below(limit float64) bool {
	return !s.Unbounded && s.Value < limit
}

func (s SafetyFactor) String() string {
	if s.Unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("%.2f", s.Value)
}

type CriticalPoint struct {
	Location        structure.Vec3      `json:"location"`
	Component       string              `json:"component"`
	StressLevel     float64             `json:"stress_level"`
	RiskLevel       string              `json:"risk_level"`
	AnnotationIndex int                 `json:"annotation_index"`
	IssueType       building.DamageType `json:"issue_type,omitempty"`
}

type Estimate struct {
	BaseLoad           float64         `json:"base_load_kn"`
	DamageMultiplier   float64         `json:"damage_multiplier"`
	NominalStress      float64         `json:"nominal_stress_kpa"`
	Strain             float64         `json:"strain"`
	SafetyFactor       SafetyFactor    `json:"safety_factor"`
	FailureProbability float64         `json:"failure_probability"`
	FailureTime        float64         `json:"failure_time"`
	CriticalPoints     []CriticalPoint `json:"critical_points"`
	Fidelity           Fidelity        `json:"analysis_type"`
}

// Estimator turns a damaged model into stress, safety and failure figures.
type Estimator interface {
	Estimate(ctx context.Context, in Input) (Estimate, error)
	Fidelity() Fidelity
}

// BaseLoad for the given number of floors, kN-equivalent.
func BaseLoad(floors int) float64 {
	return float64(floors) * FloorLoadKN * Gravity
}

// DamageMultiplier sums per-annotation increments onto 1. It is not capped.
func DamageMultiplier(annotations []damage.Annotation) float64 {
	m := 1.0
	for _, a := range annotations {
		m += increment(a.Type)
	}
	return m
}

func increment(t building.DamageType) float64 {
	switch t {
	case building.Crack, building.Tilting, building.PartialCollapse:
		return 0.2
	case building.FoundationIssue, building.ColumnDamage:
		return 0.5
	default:
		return 0
	}
}

// NominalStress in kPa. A non-positive age factor is read as no degradation.
func NominalStress(baseLoad, multiplier, ageFactor float64) float64 {
	if ageFactor <= 0 || math.IsNaN(ageFactor) {
		ageFactor = 1
	}
	return baseLoad * multiplier / ageFactor
}

// Safety compares strength (MPa) to stress (kPa).
func Safety(strengthMPa, stressKPa float64) SafetyFactor {
	if !(stressKPa > 0) {
		return SafetyFactor{Unbounded: true}
	}
	if strengthMPa <= 0 {
		return SafetyFactor{Value: 0}
	}
	return SafetyFactor{Value: strengthMPa * 1000 / stressKPa}
}

// Strain is the elastic strain for stressKPa against an elastic modulus in MPa.
func Strain(stressKPa, modulusMPa float64) float64 {
	if modulusMPa <= 0 || !(stressKPa > 0) {
		return 0
	}
	return stressKPa / 1000 / modulusMPa
}

// FailureProbability is 1 - exp(-((stressRatio+strainRatio)/2)^2), clamped to [0,1].
// It is 0 at zero load and non-decreasing in both ratios.
func FailureProbability(stressKPa, strain float64, p material.Properties) float64 {
	var stressRatio float64
	switch {
	case !(stressKPa > 0):
		stressRatio = 0
	case p.CompressiveStrength <= 0:
		return 1
	default:
		stressRatio = stressKPa / (p.CompressiveStrength * 1000)
	}
	strainRatio := 0.0
	if strain > 0 {
		strainRatio = strain / FailureStrain
	}
	x := (stressRatio + strainRatio) / 2
	return clamp01(1 - math.Exp(-x*x))
}

// FailureTime in seconds after which the structure gives way. The weakest component
// and the failure probability both shorten it. Result is in [1, 10].
func FailureTime(minIntegrity, probability float64) float64 {
	minIntegrity = math.Max(0, math.Min(1, minIntegrity))
	t := MinFailureTimeS + (MaxFailureTimeS-MinFailureTimeS)*minIntegrity*(1-clamp01(probability))
	return math.Max(MinFailureTimeS, math.Min(MaxFailureTimeS, t))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Calculate is the simplified surrogate: nominal stress from floors and damage, local
// component stress from nominal stress and integrity.
func Calculate(in Input) (Estimate, error) {
	if in.Model == nil {
		return Estimate{}, fmt.Errorf("%w: no structural model", ErrInvalidEstimate)
	}
	base := BaseLoad(in.Model.Building.Floors)
	mult := DamageMultiplier(in.Annotations)
	nominal := NominalStress(base, mult, in.Material.AgeFactor)

	local := make([]float64, len(in.Model.Components))
	for i, c := range in.Model.Components {
		local[i] = nominal / math.Max(structure.MinIntegrity, c.Integrity)
	}
	return finish(in, base, mult, nominal, local, Simplified), nil
}

// finish derives the safety figures shared by every estimator from the nominal and
// per-component stresses.
func finish(in Input, base, mult, nominal float64, local []float64, fidelity Fidelity) Estimate {
	strain := Strain(nominal, in.Material.ElasticModulus)
	prob := FailureProbability(nominal, strain, in.Material)
	return Estimate{
		BaseLoad:           base,
		DamageMultiplier:   mult,
		NominalStress:      nominal,
		Strain:             strain,
		SafetyFactor:       Safety(in.Material.CompressiveStrength, nominal),
		FailureProbability: prob,
		FailureTime:        FailureTime(in.Model.MinIntegrity(), prob),
		CriticalPoints:     criticalPoints(in, local),
		Fidelity:           fidelity,
	}
}

func criticalPoints(in Input, local []float64) []CriticalPoint {
	strength := in.Material.CompressiveStrength * 1000
	points := []CriticalPoint{}
	for i, c := range in.Model.Components {
		if i >= len(local) || !(local[i] > CriticalRatio*strength) {
			continue
		}
		cp := CriticalPoint{
			Location:        c.Position,
			Component:       c.Name,
			StressLevel:     local[i],
			RiskLevel:       "medium",
			AnnotationIndex: -1,
		}
		if local[i] > HighRatio*strength {
			cp.RiskLevel = "high"
		}
		if i < len(in.Sources) && in.Sources[i] >= 0 && in.Sources[i] < len(in.Annotations) {
			cp.AnnotationIndex = in.Sources[i]
			cp.IssueType = in.Annotations[in.Sources[i]].Type
		}
		points = append(points, cp)
	}
	return points
}

// SimplifiedEstimator runs Calculate. It performs no I/O.
type SimplifiedEstimator struct{}

func (SimplifiedEstimator) Estimate(_ context.Context, in Input) (Estimate, error) {
	return Calculate(in)
}

func (SimplifiedEstimator) Fidelity() Fidelity { return Simplified }
