package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/donormap/internal/db"
	"github.com/vbonduro/donormap/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func ptr(f float64) *float64 { return &f }

func donorAt(name string, group domain.BloodGroup, avail domain.Availability, ts time.Time) *domain.Donor {
	return &domain.Donor{
		Name:         name,
		BloodGroup:   group,
		Contact:      "555-0100",
		Latitude:     ptr(12.97),
		Longitude:    ptr(77.59),
		Availability: avail,
		Timestamp:    &ts,
	}
}

func seed(t *testing.T, s *DonorStore) []*domain.Donor {
	t.Helper()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var out []*domain.Donor
	for i, d := range []*domain.Donor{
		donorAt("Asha", domain.OPos, domain.Available, base),
		donorAt("Bilal", domain.OPos, domain.Busy, base.Add(time.Minute)),
		donorAt("Chen", domain.APos, domain.Available, base.Add(2*time.Minute)),
	} {
		created, err := s.Create(context.Background(), d)
		require.NoError(t, err, "donor %d", i)
		out = append(out, created)
	}
	return out
}

func TestDonorStoreCreate(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)

	in := donorAt("Asha", domain.ONeg, domain.Available, ts)
	in.Age = "29"
	in.UserID = "u-1"
	in.UserEmail = "asha@example.org"

	created, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, in.ID)
	assert.Equal(t, "Asha", created.Name)
	assert.Equal(t, domain.ONeg, created.BloodGroup)
	assert.Equal(t, "29", created.Age)
	assert.Equal(t, "u-1", created.UserID)
	assert.Equal(t, "asha@example.org", created.UserEmail)
	require.NotNil(t, created.Timestamp)
	assert.True(t, ts.Equal(*created.Timestamp))
	require.True(t, created.HasLocation())
	assert.InDelta(t, 12.97, *created.Latitude, 1e-9)
}

func TestDonorStoreCreateWithoutLocation(t *testing.T) {
	s := NewDonorStore(openTestDB(t))

	created, err := s.Create(context.Background(), &domain.Donor{
		Name: "Dev", BloodGroup: domain.BNeg, Contact: "x", Availability: domain.Busy,
	})
	require.NoError(t, err)
	assert.False(t, created.HasLocation())
	assert.Nil(t, created.Timestamp)
}

func TestDonorStoreGetByIDMissing(t *testing.T) {
	s := NewDonorStore(openTestDB(t))

	d, err := s.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestDonorStoreQueryAll(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	seeded := seed(t, s)

	donors, err := s.QueryDonors(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, donors, 3)
	for i := range seeded {
		assert.Equal(t, seeded[i].ID, donors[i].ID)
	}
}

func TestDonorStoreQueryEmptyCollection(t *testing.T) {
	s := NewDonorStore(openTestDB(t))

	donors, err := s.QueryDonors(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, donors)
	assert.Empty(t, donors)
}

func TestDonorStoreQueryByBloodGroup(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	seed(t, s)

	filters := domain.NewFilters()
	filters[domain.FieldBloodGroup] = "O+"

	donors, err := s.QueryDonors(context.Background(), filters.Constraints())
	require.NoError(t, err)
	require.Len(t, donors, 2)
	names := []string{donors[0].Name, donors[1].Name}
	assert.ElementsMatch(t, []string{"Asha", "Bilal"}, names)
}

func TestDonorStoreQueryByBothDimensions(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	seed(t, s)

	filters := domain.Filters{domain.FieldBloodGroup: "O+", domain.FieldAvailability: "busy"}

	donors, err := s.QueryDonors(context.Background(), filters.Constraints())
	require.NoError(t, err)
	require.Len(t, donors, 1)
	assert.Equal(t, "Bilal", donors[0].Name)
}

func TestDonorStoreQueryUnknownValueReturnsNothing(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	seed(t, s)

	filters := domain.Filters{domain.FieldBloodGroup: "Z+"}

	donors, err := s.QueryDonors(context.Background(), filters.Constraints())
	require.NoError(t, err)
	assert.Empty(t, donors)
}

func TestDonorStoreQueryRejectsUnknownField(t *testing.T) {
	s := NewDonorStore(openTestDB(t))

	_, err := s.QueryDonors(context.Background(), []domain.Constraint{{Field: "name; DROP TABLE donors", Op: domain.OpEqual, Value: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestDonorStoreQueryAfterCloseIsStoreError(t *testing.T) {
	d := openTestDB(t)
	s := NewDonorStore(d)
	require.NoError(t, d.Close())

	_, err := s.QueryDonors(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestDonorStoreQueryOrdersWithinSameSecond(t *testing.T) {
	s := NewDonorStore(openTestDB(t))
	ctx := context.Background()
	second := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	// Inserted newest first; fractional seconds must not sort as text.
	for _, d := range []*domain.Donor{
		donorAt("Late", domain.OPos, domain.Available, second.Add(500*time.Millisecond)),
		donorAt("Mid", domain.OPos, domain.Available, second.Add(120*time.Millisecond)),
		donorAt("OnTheSecond", domain.OPos, domain.Available, second),
	} {
		_, err := s.Create(ctx, d)
		require.NoError(t, err)
	}

	donors, err := s.QueryDonors(ctx, nil)
	require.NoError(t, err)
	require.Len(t, donors, 3)
	assert.Equal(t, []string{"OnTheSecond", "Mid", "Late"}, []string{donors[0].Name, donors[1].Name, donors[2].Name})
	assert.True(t, second.Equal(*donors[0].Timestamp))
	assert.True(t, second.Add(500*time.Millisecond).Equal(*donors[2].Timestamp))
}
