package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/metrics"
)

var (
	// ErrMissingField is returned, wrapped with the field name, when a
	// required registration field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned, wrapped with the field name, when a field
	// is present but unusable.
	ErrInvalidField = errors.New("invalid field")
)

// Registration outcomes recorded in metrics.
const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// donorRepository is the subset of the donor stores that DonorService requires.
type donorRepository interface {
	Create(ctx context.Context, d *domain.Donor) (*domain.Donor, error)
}

// Registration is the raw registration form input.
type Registration struct {
	Name              string
	BloodGroup        string
	Contact           string
	Latitude          string
	Longitude         string
	Availability      string
	Age               string
	Weight            string
	LastDonation      string
	MedicalConditions string
}

type DonorService struct {
	donors  donorRepository
	policy  *bluemonday.Policy
	metrics *metrics.Manager
	logger  *slog.Logger
	now     func() time.Time
}

func NewDonorService(donors donorRepository, m *metrics.Manager, logger *slog.Logger) *DonorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DonorService{
		donors:  donors,
		policy:  bluemonday.StrictPolicy(),
		metrics: m,
		logger:  logger.With("component", "donor_service"),
		now:     time.Now,
	}
}

// Register validates the form, attaches the owner identity and stores a new
// donor. Validation failures return before the store is touched.
func (s *DonorService) Register(ctx context.Context, owner domain.Identity, in Registration) (*domain.Donor, error) {
	d, err := s.build(in)
	if err != nil {
		s.metrics.RecordRegistration(outcomeInvalid)
		return nil, err
	}
	d.UserID = owner.UserID
	d.UserEmail = owner.Email
	ts := s.now().UTC()
	d.Timestamp = &ts

	created, err := s.donors.Create(ctx, d)
	if err != nil {
		s.metrics.RecordRegistration(outcomeError)
		return nil, fmt.Errorf("failed to register donor: %w", err)
	}
	s.metrics.RecordRegistration(outcomeOK)
	s.logger.Info("donor registered", "donor_id", created.ID, "blood_group", created.BloodGroup, "user_id", owner.UserID)
	return created, nil
}

// Import stores fixture donors as-is apart from sanitizing. It stops at the
// first store failure and returns how many were stored.
func (s *DonorService) Import(ctx context.Context, donors []*domain.Donor) (int, error) {
	for i, d := range donors {
		c := *d
		c.ID = ""
		c.Name = s.clean(c.Name)
		c.Contact = s.clean(c.Contact)
		c.MedicalConditions = s.clean(c.MedicalConditions)
		if c.Availability == "" {
			c.Availability = domain.Available
		}
		if _, err := s.donors.Create(ctx, &c); err != nil {
			return i, fmt.Errorf("failed to import donor %d (%s): %w", i, c.Name, err)
		}
	}
	s.logger.Info("donors imported", "count", len(donors))
	return len(donors), nil
}

func (s *DonorService) build(in Registration) (*domain.Donor, error) {
	name := s.clean(in.Name)
	group := strings.TrimSpace(in.BloodGroup)
	contact := s.clean(in.Contact)
	latStr := strings.TrimSpace(in.Latitude)
	lngStr := strings.TrimSpace(in.Longitude)

	for _, f := range []struct{ name, value string }{
		{"name", name},
		{"bloodGroup", group},
		{"contact", contact},
		{"latitude", latStr},
		{"longitude", lngStr},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}

	if !domain.BloodGroup(group).Valid() {
		return nil, fmt.Errorf("%w: bloodGroup %q", ErrInvalidField, group)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: latitude %q", ErrInvalidField, latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: longitude %q", ErrInvalidField, lngStr)
	}
	if !(domain.Position{Latitude: lat, Longitude: lng}).Valid() {
		return nil, fmt.Errorf("%w: coordinates (%g, %g) out of range", ErrInvalidField, lat, lng)
	}

	avail := domain.Availability(strings.TrimSpace(in.Availability))
	switch avail {
	case "":
		avail = domain.Available
	case domain.Available, domain.Busy, domain.Unavailable:
	default:
		return nil, fmt.Errorf("%w: availability %q", ErrInvalidField, avail)
	}

	return &domain.Donor{
		Name:              name,
		BloodGroup:        domain.BloodGroup(group),
		Contact:           contact,
		Latitude:          &lat,
		Longitude:         &lng,
		Availability:      avail,
		Age:               s.clean(in.Age),
		Weight:            s.clean(in.Weight),
		LastDonation:      s.clean(in.LastDonation),
		MedicalConditions: s.clean(in.MedicalConditions),
	}, nil
}

// clean strips markup and returns plain text. Templates escape on output, so
// entities produced by the policy are decoded again.
func (s *DonorService) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}
