package material

import (
	"errors"
	"fmt"
	"strings"
)

type Material string

const (
	Concrete Material = "concrete"
	Steel    Material = "steel"
	Brick    Material = "brick"
	Wood     Material = "wood"
	Mixed    Material = "mixed"
)

// Default is substituted for missing or malformed keys when the fallback policy is on.
const Default = Concrete

var ErrUnknownMaterial = errors.New("unknown material")

// Properties are in MPa (moduli, strengths) and kg/m3 (density).
type Properties struct {
	Material            Material `json:"material"`
	ElasticModulus      float64  `json:"elastic_modulus_mpa"`
	CompressiveStrength float64  `json:"compressive_strength_mpa"`
	TensileStrength     float64  `json:"tensile_strength_mpa"`
	Density             float64  `json:"density_kg_m3"`
	AgeFactor           float64  `json:"age_factor"`
}

// Catalog is the immutable base table. Build it once with NewCatalog and share it.
type Catalog struct {
	base     map[Material]Properties
	fallback bool
}

type Option func(*Catalog)

// WithFallback makes lookups of unknown keys resolve to Default instead of failing.
func WithFallback(enabled bool) Option {
	return func(c *Catalog) { c.fallback = enabled }
}

func NewCatalog(opts ...Option) *Catalog {
	concrete := Properties{Material: Concrete, ElasticModulus: 30000, CompressiveStrength: 30, TensileStrength: 3, Density: 2400}
	mixed := concrete
	mixed.Material = Mixed

	c := &Catalog{
		base: map[Material]Properties{
			Concrete: concrete,
			// yield strength is carried in CompressiveStrength for steel
			Steel: {Material: Steel, ElasticModulus: 200000, CompressiveStrength: 250, TensileStrength: 400, Density: 7850},
			Brick: {Material: Brick, ElasticModulus: 10000, CompressiveStrength: 15, TensileStrength: 1.5, Density: 1800},
			Wood:  {Material: Wood, ElasticModulus: 12000, CompressiveStrength: 40, TensileStrength: 80, Density: 500},
			// composite structures are rated as concrete
			Mixed: mixed,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) FallbackEnabled() bool { return c.fallback }

// Resolve normalizes a raw key. usedFallback reports a substitution of Default.
func (c *Catalog) Resolve(raw string) (m Material, usedFallback bool, err error) {
	key := Material(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := c.base[key]; ok {
		return key, false, nil
	}
	if c.fallback {
		return Default, true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownMaterial, raw)
}

// Properties returns the base properties for m scaled by AgeFactor(ageYears).
// Density is not affected by age.
func (c *Catalog) Properties(m Material, ageYears int) (Properties, error) {
	p, ok := c.base[m]
	if !ok {
		return Properties{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, m)
	}
	f := AgeFactor(ageYears)
	p.ElasticModulus *= f
	p.CompressiveStrength *= f
	p.TensileStrength *= f
	p.AgeFactor = f
	return p, nil
}

// AgeFactor is 1% loss per year, floored at 0.3. Negative ages count as new.
func AgeFactor(ageYears int) float64 {
	if ageYears < 0 {
		ageYears = 0
	}
	f := 1.0 - float64(ageYears)*0.01
	if f < 0.3 {
		return 0.3
	}
	return f
}

// ColumnRadius in meters, by material.
func ColumnRadius(m Material) float64 {
	switch m {
	case Steel:
		return 0.2
	case Concrete:
		return 0.3
	case Brick:
		return 0.4
	case Wood:
		return 0.15
	default:
		return 0.3
	}
}
