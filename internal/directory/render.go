package directory

import (
	"time"

	"github.com/vbonduro/donormap/internal/domain"
)

const fallbackColor = "#FF6B6B"

var groupColors = map[domain.BloodGroup]string{
	domain.APos:  "#FF6B6B",
	domain.ANeg:  "#FF8E8E",
	domain.BPos:  "#4ECDC4",
	domain.BNeg:  "#6FDDDD",
	domain.ABPos: "#45B7D1",
	domain.ABNeg: "#6BC5E8",
	domain.OPos:  "#96CEB4",
	domain.ONeg:  "#AEDCC0",
}

// ColorFor returns the marker color for a blood group.
func ColorFor(g domain.BloodGroup) string {
	if c, ok := groupColors[g]; ok {
		return c
	}
	return fallbackColor
}

type LegendEntry struct {
	Group domain.BloodGroup `json:"group"`
	Color string            `json:"color"`
}

func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(domain.BloodGroups))
	for _, g := range domain.BloodGroups {
		entries = append(entries, LegendEntry{Group: g, Color: ColorFor(g)})
	}
	return entries
}

// AvailabilityBadge maps availability to its badge CSS class.
func AvailabilityBadge(a domain.Availability) string {
	switch a {
	case domain.Available:
		return "bg-success"
	case domain.Busy:
		return "bg-warning"
	case domain.Unavailable:
		return "bg-danger"
	default:
		return "bg-secondary"
	}
}

// RegisteredLabel formats a registration instant for the popup.
func RegisteredLabel(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "Recently"
	}
	return ts.Format("Jan 2, 2006")
}

type Popup struct {
	Name         string `json:"name"`
	BloodGroup   string `json:"bloodGroup"`
	Availability string `json:"availability"`
	Badge        string `json:"badge"`
	Contact      string `json:"contact"`
	Age          string `json:"age,omitempty"`
	Registered   string `json:"registered"`
}

type Marker struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Color string  `json:"color"`
	Label string  `json:"label"`
	Popup Popup   `json:"popup"`
}

// Projection is the map-ready form of a donor list.
type Projection struct {
	Markers []Marker `json:"markers"`
	Skipped int      `json:"skipped"`
}

// Project converts donors to markers in list order. Donors without both
// coordinates, or with coordinates outside WGS84 ranges, are skipped and
// counted.
func Project(donors []*domain.Donor) Projection {
	p := Projection{Markers: make([]Marker, 0, len(donors))}
	for _, d := range donors {
		if d == nil || !d.HasLocation() {
			p.Skipped++
			continue
		}
		pos := domain.Position{Latitude: *d.Latitude, Longitude: *d.Longitude}
		if !pos.Valid() {
			p.Skipped++
			continue
		}
		p.Markers = append(p.Markers, Marker{
			ID:    d.ID,
			Lat:   pos.Latitude,
			Lng:   pos.Longitude,
			Color: ColorFor(d.BloodGroup),
			Label: string(d.BloodGroup),
			Popup: Popup{
				Name:         d.Name,
				BloodGroup:   string(d.BloodGroup),
				Availability: string(d.Availability),
				Badge:        AvailabilityBadge(d.Availability),
				Contact:      d.Contact,
				Age:          d.Age,
				Registered:   RegisteredLabel(d.Timestamp),
			},
		})
	}
	return p
}

type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Busy      int `json:"busy"`
}

// ComputeStats counts the in-memory list; it never queries the store.
func ComputeStats(donors []*domain.Donor) Stats {
	s := Stats{Total: len(donors)}
	for _, d := range donors {
		if d == nil {
			continue
		}
		switch d.Availability {
		case domain.Available:
			s.Available++
		case domain.Busy:
			s.Busy++
		}
	}
	return s
}
