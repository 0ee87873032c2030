package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiltersConstraintsOrder(t *testing.T) {
	f := NewFilters()
	assert.Empty(t, f.Constraints())

	f[FieldAvailability] = "busy"
	f[FieldBloodGroup] = "O+"

	assert.Equal(t, []Constraint{
		{Field: FieldBloodGroup, Op: OpEqual, Value: "O+"},
		{Field: FieldAvailability, Op: OpEqual, Value: "busy"},
	}, f.Constraints())

	f[FieldBloodGroup] = ""
	assert.Equal(t, []Constraint{{Field: FieldAvailability, Op: OpEqual, Value: "busy"}}, f.Constraints())
}

func TestFiltersCloneIsIndependent(t *testing.T) {
	f := NewFilters()
	c := f.Clone()
	c[FieldBloodGroup] = "A+"
	assert.Empty(t, f[FieldBloodGroup])
}

func TestConstraintMatches(t *testing.T) {
	d := &Donor{BloodGroup: OPos, Availability: Busy}

	assert.True(t, Constraint{FieldBloodGroup, OpEqual, "O+"}.Matches(d))
	assert.False(t, Constraint{FieldBloodGroup, OpEqual, "O-"}.Matches(d))
	assert.True(t, Constraint{FieldAvailability, OpEqual, "busy"}.Matches(d))
	assert.False(t, Constraint{"name", OpEqual, "busy"}.Matches(d))
	assert.False(t, Constraint{FieldBloodGroup, "!=", "A+"}.Matches(d))
}

func TestBloodGroupValid(t *testing.T) {
	for _, g := range BloodGroups {
		assert.True(t, g.Valid(), g)
	}
	assert.False(t, BloodGroup("C+").Valid())
	assert.False(t, BloodGroup("O−").Valid())
}

func TestPositionValid(t *testing.T) {
	assert.True(t, Position{Latitude: 20.5937, Longitude: 78.9629}.Valid())
	assert.True(t, Position{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Position{Latitude: 90.1}.Valid())
	assert.False(t, Position{Longitude: -180.5}.Valid())
}

func TestDonorHasLocation(t *testing.T) {
	lat, lng := 1.0, 2.0
	assert.True(t, (&Donor{Latitude: &lat, Longitude: &lng}).HasLocation())
	assert.False(t, (&Donor{Latitude: &lat}).HasLocation())
	assert.False(t, (&Donor{}).HasLocation())
}
