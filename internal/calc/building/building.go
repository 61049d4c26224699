package building

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
)

type Type string

const (
	Residential Type = "residential"
	Commercial  Type = "commercial"
	Industrial  Type = "industrial"
	MixedUse    Type = "mixed_use"
)

type DamageType string

const (
	Crack           DamageType = "crack"
	Tilting         DamageType = "tilting"
	PartialCollapse DamageType = "partial_collapse"
	FoundationIssue DamageType = "foundation_issue"
	ColumnDamage    DamageType = "column_damage"
	WallDamage      DamageType = "wall_damage"
)

const (
	MinFloors = 1
	MaxFloors = 200
	MinYear   = 1800
	MaxYear   = 2035
)

var ErrInvalidInput = errors.New("invalid input")

// Building is the immutable descriptor of the assessed structure.
type Building struct {
	Type              Type              `json:"building_type"`
	Floors            int               `json:"number_of_floors"`
	Material          material.Material `json:"primary_material"`
	YearBuilt         int               `json:"year_built"`
	DamageTypes       []DamageType      `json:"damage_types"`
	DamageDescription string            `json:"damage_description"`
	Latitude          float64           `json:"latitude"`
	Longitude         float64           `json:"longitude"`
}

// ParseType accepts hyphen or underscore spellings.
func ParseType(s string) (Type, error) {
	t := Type(normalize(s))
	switch t {
	case Residential, Commercial, Industrial, MixedUse:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown building type %q", ErrInvalidInput, s)
}

// ParseDamageType accepts the annotation spelling ("crack", "column-damage") as well as
// the survey spelling ("cracks", "foundation_issues").
func ParseDamageType(s string) (DamageType, error) {
	switch n := normalize(s); n {
	case "crack", "cracks":
		return Crack, nil
	case "tilting", "tilt":
		return Tilting, nil
	case "partial_collapse":
		return PartialCollapse, nil
	case "foundation_issue", "foundation_issues":
		return FoundationIssue, nil
	case "column_damage":
		return ColumnDamage, nil
	case "wall_damage":
		return WallDamage, nil
	}
	return "", fmt.Errorf("%w: unknown damage type %q", ErrInvalidInput, s)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Validate checks the enumerated and ranged fields. Material is checked by the catalog.
func (b Building) Validate() error {
	if _, err := ParseType(string(b.Type)); err != nil {
		return err
	}
	if b.Floors < MinFloors || b.Floors > MaxFloors {
		return fmt.Errorf("%w: number_of_floors must be between %d and %d, got %d", ErrInvalidInput, MinFloors, MaxFloors, b.Floors)
	}
	if b.YearBuilt < MinYear || b.YearBuilt > MaxYear {
		return fmt.Errorf("%w: year_built must be between %d and %d, got %d", ErrInvalidInput, MinYear, MaxYear, b.YearBuilt)
	}
	for _, d := range b.DamageTypes {
		if _, err := ParseDamageType(string(d)); err != nil {
			return err
		}
	}
	return nil
}

// Footprint returns length and width in meters.
func (t Type) Footprint() (length, width float64) {
	switch t {
	case Residential:
		return 20, 15
	case Commercial:
		return 30, 25
	case Industrial:
		return 40, 30
	default:
		return 20, 15
	}
}

// HasWalls reports whether exterior walls are modeled for the type.
func (t Type) HasWalls() bool {
	return t == Residential || t == Commercial
}

// Age in whole years relative to referenceYear, never negative.
func (b Building) Age(referenceYear int) int {
	if a := referenceYear - b.YearBuilt; a > 0 {
		return a
	}
	return 0
}
