package domain

import (
	"errors"
	"time"
)

// ErrStore is wrapped by every directory store failure (network, permission,
// decode). Callers check it with errors.Is.
var ErrStore = errors.New("directory store error")

type BloodGroup string

const (
	APos  BloodGroup = "A+"
	ANeg  BloodGroup = "A-"
	BPos  BloodGroup = "B+"
	BNeg  BloodGroup = "B-"
	ABPos BloodGroup = "AB+"
	ABNeg BloodGroup = "AB-"
	OPos  BloodGroup = "O+"
	ONeg  BloodGroup = "O-"
)

// BloodGroups lists every group in display order.
var BloodGroups = []BloodGroup{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

func (g BloodGroup) Valid() bool {
	for _, known := range BloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "unavailable"
)

var Availabilities = []Availability{Available, Busy, Unavailable}

// Donor is a donor profile as stored in the directory. Latitude and Longitude
// are pointers because stored records are not guaranteed to carry both.
type Donor struct {
	ID                string       `json:"id" yaml:"id"`
	Name              string       `json:"name" yaml:"name"`
	BloodGroup        BloodGroup   `json:"bloodGroup" yaml:"bloodGroup"`
	Contact           string       `json:"contact" yaml:"contact"`
	Latitude          *float64     `json:"latitude,omitempty" yaml:"latitude"`
	Longitude         *float64     `json:"longitude,omitempty" yaml:"longitude"`
	Availability      Availability `json:"availability" yaml:"availability"`
	Age               string       `json:"age,omitempty" yaml:"age"`
	Weight            string       `json:"weight,omitempty" yaml:"weight"`
	LastDonation      string       `json:"lastDonation,omitempty" yaml:"lastDonation"`
	MedicalConditions string       `json:"medicalConditions,omitempty" yaml:"medicalConditions"`
	Timestamp         *time.Time   `json:"timestamp,omitempty" yaml:"timestamp"`
	UserID            string       `json:"userId,omitempty" yaml:"userId"`
	UserEmail         string       `json:"userEmail,omitempty" yaml:"userEmail"`
}

// HasLocation reports whether both coordinates are present.
func (d *Donor) HasLocation() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// Field names shared by filters, constraints and the stores.
const (
	FieldBloodGroup   = "bloodGroup"
	FieldAvailability = "availability"
)

// Dimensions is the fixed order in which filter dimensions become constraints.
var Dimensions = []string{FieldBloodGroup, FieldAvailability}

// Filters maps a filter dimension to its selected value. An empty value means
// no constraint on that dimension.
type Filters map[string]string

func NewFilters() Filters {
	f := make(Filters, len(Dimensions))
	for _, d := range Dimensions {
		f[d] = ""
	}
	return f
}

func (f Filters) Clone() Filters {
	c := make(Filters, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

// Constraints turns the non-empty dimensions into equality constraints,
// ordered bloodGroup then availability.
func (f Filters) Constraints() []Constraint {
	var cs []Constraint
	for _, d := range Dimensions {
		if v := f[d]; v != "" {
			cs = append(cs, Constraint{Field: d, Op: OpEqual, Value: v})
		}
	}
	return cs
}

type Op string

const OpEqual Op = "=="

// Constraint is a single (field, op, value) narrowing of the donor collection.
type Constraint struct {
	Field string
	Op    Op
	Value string
}

// Matches reports whether d satisfies c. Unknown fields never match.
func (c Constraint) Matches(d *Donor) bool {
	if c.Op != OpEqual {
		return false
	}
	switch c.Field {
	case FieldBloodGroup:
		return string(d.BloodGroup) == c.Value
	case FieldAvailability:
		return string(d.Availability) == c.Value
	default:
		return false
	}
}

// Position is a geographic coordinate pair in decimal degrees.
type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid reports whether p lies within the WGS84 coordinate ranges.
func (p Position) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Identity is the authenticated owner attached to newly created records.
type Identity struct {
	UserID string
	Email  string
}
