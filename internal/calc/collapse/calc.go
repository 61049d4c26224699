package collapse

import (
	"math"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/structure"
)

const (
	TimeStepS = 0.01
	DurationS = 10.0
	// FrameCount covers [0, DurationS) at TimeStepS.
	FrameCount = 1000

	Gravity = 9.81
	// LevelDelayS staggers the fall so upper levels give way later.
	LevelDelayS = 0.1
	// ToppleS is how long a column or wall takes to rotate flat.
	ToppleS = 1.5
	// RubbleLayerM is the resting height added per level of the pile.
	RubbleLayerM = 0.3

	DangerPerFloorM  = 2.0
	CautionPerFloorM = 5.0
	SafePerFloorM    = 10.0
)

type ZoneLevel string

const (
	Danger  ZoneLevel = "danger"
	Caution ZoneLevel = "caution"
	Safe    ZoneLevel = "safe"
)

type Frame struct {
	Time      float64          `json:"time"`
	Positions []structure.Vec3 `json:"positions"`
}

type SafetyZone struct {
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Radius float64   `json:"radius"`
	Level  ZoneLevel `json:"level"`
}

// Footprint is the ground circle expected to hold the debris.
type Footprint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

type Result struct {
	FailureTime float64      `json:"failure_time"`
	Frames      []Frame      `json:"collapse_frames"`
	Debris      Footprint    `json:"debris_footprint"`
	Zones       []SafetyZone `json:"safety_zones"`
}

// Simulate produces the collapse timeline for m after failureTime. It reads m and
// never modifies it; the same model and failure time always give the same frames.
func Simulate(m *structure.Model, failureTime float64) Result {
	if math.IsNaN(failureTime) || failureTime < 0 {
		failureTime = 0
	}
	res := Result{
		FailureTime: failureTime,
		Frames:      make([]Frame, FrameCount),
		Zones:       Zones(m),
	}
	for i := 0; i < FrameCount; i++ {
		t := float64(i) * TimeStepS
		positions := make([]structure.Vec3, len(m.Components))
		for ci, c := range m.Components {
			positions[ci], _ = pose(c, elapsed(c, t, failureTime))
		}
		res.Frames[i] = Frame{Time: t, Positions: positions}
	}
	res.Debris = debris(m, failureTime)
	return res
}

func elapsed(c structure.Component, t, failureTime float64) float64 {
	return t - failureTime - float64(c.Level)*LevelDelayS
}

// pose returns the center and tilt of c, e seconds after it started to fall.
func pose(c structure.Component, e float64) (structure.Vec3, float64) {
	if e <= 0 {
		return c.Position, c.Tilt
	}
	hh := c.HalfHeight()

	theta := c.Tilt
	if c.Kind == structure.Column || c.Kind == structure.Wall {
		target := math.Pi / 2
		if theta < target {
			theta += (target - theta) * math.Min(1, e/ToppleS)
		}
	}

	drop := math.Min(0.5*Gravity*e*e, dropCap(c))

	lateral := hh * (math.Sin(theta) - math.Sin(c.Tilt))
	p := c.Position
	p[0] += lateral * c.TiltDir[0]
	p[1] += lateral * c.TiltDir[1]
	p[2] -= drop + hh*(math.Cos(c.Tilt)-math.Cos(theta))
	return p, theta
}

// dropCap is how far c can fall before its base reaches the rubble layer of its
// level. Columns stand on the ground and only topple.
func dropCap(c structure.Component) float64 {
	if c.Kind == structure.Column {
		return 0
	}
	base := c.Position[2] - c.HalfHeight()*math.Cos(c.Tilt)
	return math.Max(0, base-RubbleLayerM*float64(c.Level))
}

func debris(m *structure.Model, failureTime float64) Footprint {
	center := m.Center()
	last := float64(FrameCount-1) * TimeStepS
	var r float64
	for _, c := range m.Components {
		p, theta := pose(c, elapsed(c, last, failureTime))
		extent := math.Max(c.Size[0], c.Size[1])/2 + c.HalfHeight()*math.Sin(theta)
		if d := math.Hypot(p[0]-center[0], p[1]-center[1]) + extent; d > r {
			r = d
		}
	}
	return Footprint{X: center[0], Y: center[1], Radius: r}
}

// Zones returns the danger, caution and safe circles in that order.
func Zones(m *structure.Model) []SafetyZone {
	c := m.Center()
	f := float64(m.Building.Floors)
	return []SafetyZone{
		{X: c[0], Y: c[1], Radius: f * DangerPerFloorM, Level: Danger},
		{X: c[0], Y: c[1], Radius: f * CautionPerFloorM, Level: Caution},
		{X: c[0], Y: c[1], Radius: f * SafePerFloorM, Level: Safe},
	}
}

// Thin keeps every stride-th frame plus the last one. A stride below 2 returns frames.
func Thin(frames []Frame, stride int) []Frame {
	if stride < 2 || len(frames) == 0 {
		return frames
	}
	out := make([]Frame, 0, len(frames)/stride+1)
	for i := 0; i < len(frames); i += stride {
		out = append(out, frames[i])
	}
	if (len(frames)-1)%stride != 0 {
		out = append(out, frames[len(frames)-1])
	}
	return out
}
