package building

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBuilding() Building {
	return Building{
		Type:      Residential,
		Floors:    5,
		Material:  "concrete",
		YearBuilt: 1995,
	}
}

func TestParseDamageType(t *testing.T) {
	tests := []struct {
		in   string
		want DamageType
	}{
		{"crack", Crack},
		{"cracks", Crack},
		{"tilting", Tilting},
		{"partial-collapse", PartialCollapse},
		{"partial_collapse", PartialCollapse},
		{"foundation_issues", FoundationIssue},
		{"Foundation-Issue", FoundationIssue},
		{"column-damage", ColumnDamage},
		{"wall_damage", WallDamage},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDamageType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDamageType("water_damage")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("mixed-use")
	require.NoError(t, err)
	assert.Equal(t, MixedUse, got)

	_, err = ParseType("castle")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Building)
		errMsg string
	}{
		{"valid", func(*Building) {}, ""},
		{"zero floors", func(b *Building) { b.Floors = 0 }, "number_of_floors"},
		{"too many floors", func(b *Building) { b.Floors = 201 }, "number_of_floors"},
		{"year too early", func(b *Building) { b.YearBuilt = 1700 }, "year_built"},
		{"year too late", func(b *Building) { b.YearBuilt = 2040 }, "year_built"},
		{"unknown type", func(b *Building) { b.Type = "barn" }, "building type"},
		{"unknown damage type", func(b *Building) { b.DamageTypes = []DamageType{"mold"} }, "damage type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBuilding()
			tt.mutate(&b)
			err := b.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFootprint(t *testing.T) {
	l, w := Residential.Footprint()
	assert.Equal(t, [2]float64{20, 15}, [2]float64{l, w})
	l, w = Commercial.Footprint()
	assert.Equal(t, [2]float64{30, 25}, [2]float64{l, w})
	l, w = Industrial.Footprint()
	assert.Equal(t, [2]float64{40, 30}, [2]float64{l, w})
	l, w = MixedUse.Footprint()
	assert.Equal(t, [2]float64{20, 15}, [2]float64{l, w})
}

func TestAge(t *testing.T) {
	b := validBuilding()
	assert.Equal(t, 30, b.Age(2025))
	b.YearBuilt = 2030
	assert.Equal(t, 0, b.Age(2025))
}
