package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vbonduro/donormap/internal/domain"
)

func TestBuildFilterEmpty(t *testing.T) {
	filter, err := buildFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, filter)
}

func TestBuildFilterKeepsDimensionOrder(t *testing.T) {
	filters := domain.Filters{domain.FieldAvailability: "busy", domain.FieldBloodGroup: "AB-"}

	filter, err := buildFilter(filters.Constraints())
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "bloodGroup", Value: "AB-"},
		{Key: "availability", Value: "busy"},
	}, filter)
}

func TestBuildFilterRejectsUnknownField(t *testing.T) {
	_, err := buildFilter([]domain.Constraint{{Field: "$where", Op: domain.OpEqual, Value: "1"}})
	assert.Error(t, err)
}

func TestBuildFilterRejectsUnknownOperator(t *testing.T) {
	_, err := buildFilter([]domain.Constraint{{Field: domain.FieldBloodGroup, Op: "!=", Value: "A+"}})
	assert.Error(t, err)
}

func TestDocRoundTripKeepsMissingCoordinates(t *testing.T) {
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	in := &domain.Donor{Name: "Ira", BloodGroup: domain.BPos, Availability: domain.Busy, Timestamp: &ts}

	out := fromDoc(toDoc(in))
	assert.Equal(t, "Ira", out.Name)
	assert.Nil(t, out.Latitude)
	assert.Nil(t, out.Longitude)
	assert.Equal(t, &ts, out.Timestamp)
}

// TestStoreAgainstServer runs only when DONORMAP_TEST_MONGO_URI points at a
// reachable server.
func TestStoreAgainstServer(t *testing.T) {
	uri := os.Getenv("DONORMAP_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DONORMAP_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := Connect(ctx, uri, "donormap_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := New(db)
	require.NoError(t, s.EnsureIndexes(ctx))

	lat, lng := 1.0, 2.0
	for _, d := range []*domain.Donor{
		{Name: "a", BloodGroup: domain.OPos, Availability: domain.Available, Latitude: &lat, Longitude: &lng},
		{Name: "b", BloodGroup: domain.OPos, Availability: domain.Busy, Latitude: &lat, Longitude: &lng},
		{Name: "c", BloodGroup: domain.APos, Availability: domain.Available, Latitude: &lat, Longitude: &lng},
	} {
		_, err := s.Create(ctx, d)
		require.NoError(t, err)
	}

	all, err := s.QueryDonors(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	opos, err := s.QueryDonors(ctx, domain.Filters{domain.FieldBloodGroup: "O+"}.Constraints())
	require.NoError(t, err)
	require.Len(t, opos, 2)
	for _, d := range opos {
		assert.Equal(t, domain.OPos, d.BloodGroup)
	}

	got, err := s.GetByID(ctx, opos[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, opos[0].Name, got.Name)

	missing, err := s.GetByID(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
