package damage

import (
	"fmt"
	"math"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/structure"
)

const (
	// ImageSize is the side of the reference image annotations are placed on.
	ImageSize = 1024.0
	// RadiusM is the reach of one annotation around its projected point.
	RadiusM = 5.0
	// TiltStep is the rotation applied per tilting annotation, in radians.
	TiltStep = 0.1
	MaxTilt  = math.Pi / 2
)

// Position is normalized to [0,1] on both axes of the reference image.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Annotation struct {
	ID          string              `json:"id,omitempty"`
	Type        building.DamageType `json:"issue_type"`
	Position    Position            `json:"position"`
	Description string              `json:"description,omitempty"`
}

// FromPixels normalizes a position given in reference-image pixels.
func FromPixels(x, y float64) (Position, error) {
	if x < 0 || x > ImageSize || y < 0 || y > ImageSize || math.IsNaN(x) || math.IsNaN(y) {
		return Position{}, fmt.Errorf("%w: position (%g, %g) outside [0, %g]", building.ErrInvalidInput, x, y, ImageSize)
	}
	return Position{X: x / ImageSize, Y: y / ImageSize}, nil
}

func (a Annotation) Validate() error {
	if _, err := building.ParseDamageType(string(a.Type)); err != nil {
		return err
	}
	p := a.Position
	if !(p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1) {
		return fmt.Errorf("%w: normalized position (%g, %g) outside [0, 1]", building.ErrInvalidInput, p.X, p.Y)
	}
	return nil
}

// Multiplier is the integrity factor applied once per affected component.
// Tilting has no integrity effect.
func Multiplier(t building.DamageType) float64 {
	switch t {
	case building.Crack:
		return 0.7
	case building.PartialCollapse:
		return 0.1
	case building.FoundationIssue:
		return 0.3
	case building.ColumnDamage:
		return 0.4
	case building.WallDamage:
		return 0.5
	default:
		return 1.0
	}
}

// Targets reports whether damage of type t can act on c.
func Targets(t building.DamageType, c structure.Component) bool {
	switch t {
	case building.FoundationIssue:
		return c.Kind == structure.Column || (c.Kind == structure.FloorSlab && c.Level == 0)
	case building.ColumnDamage:
		return c.Kind == structure.Column
	case building.WallDamage:
		return c.Kind == structure.Wall
	default:
		return true
	}
}

type Effect struct {
	Annotation int                 `json:"annotation"`
	Type       building.DamageType `json:"issue_type"`
	Point      structure.Vec3      `json:"point"`
	Affected   []string            `json:"affected"`
}

type TiltEvent struct {
	Annotation int     `json:"annotation"`
	Component  string  `json:"component"`
	Angle      float64 `json:"angle"`
}

type Report struct {
	Effects    []Effect    `json:"effects"`
	Unmatched  []int       `json:"unmatched"`
	TiltEvents []TiltEvent `json:"tilt_events"`
	// Sources holds, per component, the first annotation that touched it or -1.
	Sources []int `json:"-"`
}

// Project maps a normalized image position into the model frame.
func Project(m *structure.Model, p Position) structure.Vec3 {
	return structure.Vec3{
		(p.X - 0.5) * m.Length,
		(p.Y - 0.5) * m.Width,
		p.Y * m.Height,
	}
}

// Apply reduces integrity of the components near each annotation, in order.
// Multipliers compose and integrity never drops below structure.MinIntegrity.
func Apply(m *structure.Model, annotations []Annotation) Report {
	rep := Report{
		Effects:    make([]Effect, 0, len(annotations)),
		Unmatched:  []int{},
		TiltEvents: []TiltEvent{},
		Sources:    make([]int, len(m.Components)),
	}
	for i := range rep.Sources {
		rep.Sources[i] = -1
	}

	for ai, a := range annotations {
		point := Project(m, a.Position)
		eff := Effect{Annotation: ai, Type: a.Type, Point: point, Affected: []string{}}

		for ci := range m.Components {
			c := &m.Components[ci]
			if c.Position.Dist(point) > RadiusM || !Targets(a.Type, *c) {
				continue
			}
			if a.Type == building.Tilting {
				angle := tilt(c)
				rep.TiltEvents = append(rep.TiltEvents, TiltEvent{Annotation: ai, Component: c.Name, Angle: angle})
			} else {
				c.Integrity = math.Max(structure.MinIntegrity, c.Integrity*Multiplier(a.Type))
			}
			if rep.Sources[ci] < 0 {
				rep.Sources[ci] = ai
			}
			eff.Affected = append(eff.Affected, c.Name)
		}

		if len(eff.Affected) == 0 {
			rep.Unmatched = append(rep.Unmatched, ai)
		}
		rep.Effects = append(rep.Effects, eff)
	}
	return rep
}

// tilt rotates c by TiltStep about its base and moves its center accordingly.
// Returns the applied increment.
func tilt(c *structure.Component) float64 {
	before := c.Tilt
	after := math.Min(MaxTilt, before+TiltStep)
	hh := c.HalfHeight()
	lateral := hh * (math.Sin(after) - math.Sin(before))
	c.Position[0] += lateral * c.TiltDir[0]
	c.Position[1] += lateral * c.TiltDir[1]
	c.Position[2] -= hh * (math.Cos(before) - math.Cos(after))
	c.Tilt = after
	return after - before
}
