package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/donormap/internal/domain"
)

// columns maps a constraint field to its SQL column. Fields outside this map
// are rejected before any SQL is built.
var columns = map[string]string{
	domain.FieldBloodGroup:   "blood_group",
	domain.FieldAvailability: "availability",
}

// createdAtLayout is fixed width so that text order in created_at matches
// time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const donorColumns = `id, name, blood_group, contact, latitude, longitude, availability,
	age, weight, last_donation, medical_conditions, created_at, user_id, user_email`

type DonorStore struct {
	db *sql.DB
}

func NewDonorStore(db *sql.DB) *DonorStore {
	return &DonorStore{db: db}
}

// Create inserts d under a fresh id and returns the stored record. The
// caller's value is not modified.
func (s *DonorStore) Create(ctx context.Context, d *domain.Donor) (*domain.Donor, error) {
	id := uuid.NewString()

	var createdAt sql.NullString
	if d.Timestamp != nil {
		createdAt = sql.NullString{String: d.Timestamp.UTC().Format(createdAtLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donors (`+donorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, d.Name, string(d.BloodGroup), d.Contact, nullFloat(d.Latitude), nullFloat(d.Longitude),
		string(d.Availability), d.Age, d.Weight, d.LastDonation, d.MedicalConditions, createdAt,
		d.UserID, d.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create donor: %w", domain.ErrStore, err)
	}

	return s.GetByID(ctx, id)
}

func (s *DonorStore) GetByID(ctx context.Context, id string) (*domain.Donor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = ?`, id)
	d, err := scanDonor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get donor: %w", domain.ErrStore, err)
	}
	return d, nil
}

// QueryDonors returns every donor satisfying all constraints, oldest first.
// An empty constraint list returns the whole collection.
func (s *DonorStore) QueryDonors(ctx context.Context, constraints []domain.Constraint) ([]*domain.Donor, error) {
	where, args, err := buildWhere(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+donorColumns+` FROM donors`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query donors: %w", domain.ErrStore, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	donors := []*domain.Donor{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan donor: %w", domain.ErrStore, err)
		}
		donors = append(donors, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating donors: %w", domain.ErrStore, err)
	}

	return donors, nil
}

func buildWhere(constraints []domain.Constraint) (string, []any, error) {
	if len(constraints) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(constraints))
	args := make([]any, 0, len(constraints))
	for _, c := range constraints {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		if c.Op != domain.OpEqual {
			return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDonor(row scanner) (*domain.Donor, error) {
	var (
		d                   domain.Donor
		bloodGroup, avail   string
		latitude, longitude sql.NullFloat64
		createdAt           sql.NullString
	)
	err := row.Scan(&d.ID, &d.Name, &bloodGroup, &d.Contact, &latitude, &longitude, &avail,
		&d.Age, &d.Weight, &d.LastDonation, &d.MedicalConditions, &createdAt, &d.UserID, &d.UserEmail)
	if err != nil {
		return nil, err
	}

	d.BloodGroup = domain.BloodGroup(bloodGroup)
	d.Availability = domain.Availability(avail)
	if latitude.Valid {
		d.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		d.Longitude = &longitude.Float64
	}
	if createdAt.Valid {
		ts, err := time.Parse(createdAtLayout, createdAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt.String, err)
		}
		d.Timestamp = &ts
	}
	return &d, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
