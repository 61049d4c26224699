package risk

import (
	"math"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/loads"
)

type Level string

const (
	Low      Level = "low"
	Medium   Level = "medium"
	High     Level = "high"
	Critical Level = "critical"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

const (
	MaxAgeScore         = 30
	MaxDamageScore      = 40
	MaxSafetyScore      = 20
	MaxFailureTimeScore = 10
	MaxScore            = 100
)

type Input struct {
	// AgeYears is the building age at assessment time.
	AgeYears int
	// DamageTypes are the distinct observed damage types.
	DamageTypes        []building.DamageType
	SafetyFactor       loads.SafetyFactor
	FailureProbability float64
	FailureTime        float64
	Fidelity           loads.Fidelity
}

type Contributions struct {
	Age          int `json:"age"`
	Damage       int `json:"damage"`
	SafetyFactor int `json:"safety_factor"`
	FailureTime  int `json:"failure_time"`
}

type Summary struct {
	Score         int           `json:"risk_score"`
	Level         Level         `json:"risk_level"`
	Confidence    Confidence    `json:"confidence"`
	Contributions Contributions `json:"contributions"`
}

// Aggregate scores a building on four capped contributions. The weights and level
// thresholds are fixed; downstream consumers depend on them.
func Aggregate(in Input) Summary {
	c := Contributions{
		Age:          AgeScore(in.AgeYears),
		Damage:       DamageScore(len(in.DamageTypes)),
		SafetyFactor: SafetyScore(in.SafetyFactor),
		FailureTime:  FailureTimeScore(in.FailureTime),
	}
	score := c.Age + c.Damage + c.SafetyFactor + c.FailureTime
	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}

	conf := ConfidenceMedium
	if in.Fidelity == loads.HighFidelity {
		conf = ConfidenceHigh
	}
	return Summary{Score: score, Level: LevelFor(score), Confidence: conf, Contributions: c}
}

func AgeScore(age int) int {
	switch {
	case age > 50:
		return 30
	case age > 30:
		return 20
	case age > 20:
		return 10
	default:
		return 0
	}
}

func DamageScore(distinctTypes int) int {
	if distinctTypes < 0 {
		return 0
	}
	if s := distinctTypes * 10; s < MaxDamageScore {
		return s
	}
	return MaxDamageScore
}

// SafetyScore treats an unbounded factor as perfectly safe.
func SafetyScore(sf loads.SafetyFactor) int {
	switch {
	case sf.Below(1.0):
		return 20
	case sf.Below(1.5):
		return 15
	case sf.Below(2.0):
		return 10
	default:
		return 0
	}
}

// FailureTimeScore rewards fast failure. NaN is read as no failure.
func FailureTimeScore(seconds float64) int {
	switch {
	case math.IsNaN(seconds):
		return 0
	case seconds < 2.0:
		return 10
	case seconds < 5.0:
		return 5
	default:
		return 0
	}
}

func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return Critical
	case score >= 60:
		return High
	case score >= 40:
		return Medium
	default:
		return Low
	}
}

// DistinctDamage merges the declared and annotated damage types, keeping first-seen order.
func DistinctDamage(declared []building.DamageType, annotated ...building.DamageType) []building.DamageType {
	seen := make(map[building.DamageType]bool, len(declared)+len(annotated))
	out := make([]building.DamageType, 0, len(declared)+len(annotated))
	for _, list := range [][]building.DamageType{declared, annotated} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Recommendations lists the responder actions for a risk level.
func Recommendations(l Level) []string {
	switch l {
	case Critical:
		return []string{
			"Evacuate building immediately",
			"Establish 100m safety perimeter",
			"Notify emergency services",
			"Document for insurance and legal purposes",
			"Do not allow entry under any circumstances",
		}
	case High:
		return []string{
			"Restrict access to building",
			"Conduct immediate structural inspection",
			"Consider temporary support measures",
			"Monitor for further damage progression",
			"Evacuate surrounding buildings if necessary",
		}
	case Medium:
		return []string{
			"Conduct detailed structural inspection",
			"Monitor for damage progression",
			"Consider temporary support measures",
			"Plan for necessary repairs",
			"Regular safety assessments recommended",
		}
	default:
		return []string{
			"Standard safety protocols apply",
			"Routine maintenance recommended",
			"Monitor for any changes",
			"Regular inspections advised",
		}
	}
}
