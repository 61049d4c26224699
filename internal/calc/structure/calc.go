package structure

import (
	"fmt"
	"math"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
)

const (
	FloorHeightM     = 3.0
	SlabThicknessM   = 0.2
	WallThicknessM   = 0.2
	RoofThicknessM   = 0.1
	ColumnSpacingM   = 5.0
	MinIntegrity     = 0.05
	DefaultIntegrity = 1.0
)

type Kind string

const (
	FloorSlab Kind = "floor_slab"
	Column    Kind = "column"
	Wall      Kind = "wall"
	Roof      Kind = "roof"
)

// Vec3 is x, y, z in meters with the footprint center at the origin and z up.
type Vec3 [3]float64

func (v Vec3) Dist(o Vec3) float64 {
	dx, dy, dz := v[0]-o[0], v[1]-o[1], v[2]-o[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

type Component struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Level int    `json:"level"`
	// Position is the center of the component.
	Position Vec3    `json:"position"`
	Size     Vec3    `json:"size"`
	Mass     float64 `json:"mass_kg"`
	// Integrity is in [MinIntegrity, 1] and only ever decreases.
	Integrity float64 `json:"integrity"`
	// Tilt in radians about the component base, toward TiltDir.
	Tilt    float64    `json:"tilt"`
	TiltDir [2]float64 `json:"-"`
}

func (c Component) HalfHeight() float64 { return c.Size[2] / 2 }

// Model is owned by a single assessment and must not be shared.
type Model struct {
	Building   building.Building `json:"-"`
	Length     float64           `json:"length_m"`
	Width      float64           `json:"width_m"`
	Height     float64           `json:"height_m"`
	Components []Component       `json:"components"`
}

// Center of the footprint at ground level.
func (m *Model) Center() Vec3 { return Vec3{0, 0, 0} }

// Positions returns a copy of the current component centers.
func (m *Model) Positions() []Vec3 {
	out := make([]Vec3, len(m.Components))
	for i, c := range m.Components {
		out[i] = c.Position
	}
	return out
}

// MinIntegrity returns the lowest component integrity, 1 for an empty model.
func (m *Model) MinIntegrity() float64 {
	lowest := DefaultIntegrity
	for _, c := range m.Components {
		if c.Integrity < lowest {
			lowest = c.Integrity
		}
	}
	return lowest
}

// Build lays out slabs, a column grid, exterior walls and a roof for b. The layout
// depends only on b and the material, so equal inputs give equal models.
func Build(b building.Building, props material.Properties) (*Model, error) {
	if b.Floors < building.MinFloors {
		return nil, fmt.Errorf("%w: number_of_floors must be at least %d", building.ErrInvalidInput, building.MinFloors)
	}
	length, width := b.Type.Footprint()
	height := float64(b.Floors) * FloorHeightM
	rho := props.Density

	m := &Model{
		Building: b,
		Length:   length,
		Width:    width,
		Height:   height,
	}

	for i := 0; i < b.Floors; i++ {
		m.add(Component{
			Name:     fmt.Sprintf("Floor_%d", i),
			Kind:     FloorSlab,
			Level:    i,
			Position: Vec3{0, 0, float64(i) * FloorHeightM},
			Size:     Vec3{length, width, SlabThicknessM},
			Mass:     length * width * SlabThicknessM * rho,
		})
	}

	r := material.ColumnRadius(b.Material)
	nx := int(length/ColumnSpacingM) + 1
	ny := int(width/ColumnSpacingM) + 1
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			x := -length/2 + float64(i)*ColumnSpacingM
			y := -width/2 + float64(j)*ColumnSpacingM
			m.add(Component{
				Name:     fmt.Sprintf("Column_%d_%d", i, j),
				Kind:     Column,
				Position: Vec3{x, y, height / 2},
				Size:     Vec3{2 * r, 2 * r, height},
				Mass:     math.Pi * r * r * height * rho,
			})
		}
	}

	if b.Type.HasWalls() {
		for i := 0; i < b.Floors; i++ {
			z := float64(i)*FloorHeightM + FloorHeightM/2
			walls := []struct {
				side string
				pos  Vec3
				size Vec3
				dir  [2]float64
			}{
				{"front", Vec3{0, width / 2, z}, Vec3{length, WallThicknessM, FloorHeightM}, [2]float64{0, 1}},
				{"back", Vec3{0, -width / 2, z}, Vec3{length, WallThicknessM, FloorHeightM}, [2]float64{0, -1}},
				{"left", Vec3{-length / 2, 0, z}, Vec3{WallThicknessM, width, FloorHeightM}, [2]float64{-1, 0}},
				{"right", Vec3{length / 2, 0, z}, Vec3{WallThicknessM, width, FloorHeightM}, [2]float64{1, 0}},
			}
			for _, w := range walls {
				m.add(Component{
					Name:     fmt.Sprintf("Wall_%s_%d", w.side, i),
					Kind:     Wall,
					Level:    i,
					Position: w.pos,
					Size:     w.size,
					Mass:     w.size[0] * w.size[1] * w.size[2] * rho,
					TiltDir:  w.dir,
				})
			}
		}
	}

	if b.Floors > 1 {
		m.add(Component{
			Name:     "Roof",
			Kind:     Roof,
			Level:    b.Floors,
			Position: Vec3{0, 0, height},
			Size:     Vec3{length, width, RoofThicknessM},
			Mass:     length * width * RoofThicknessM * rho,
		})
	}

	return m, nil
}

func (m *Model) add(c Component) {
	c.Integrity = DefaultIntegrity
	if c.TiltDir == [2]float64{} {
		c.TiltDir = outward(c.Position)
	}
	m.Components = append(m.Components, c)
}

// outward is the unit vector from the footprint center toward p, +x at the center.
func outward(p Vec3) [2]float64 {
	n := math.Hypot(p[0], p[1])
	if n == 0 {
		return [2]float64{1, 0}
	}
	return [2]float64{p[0] / n, p[1] / n}
}
