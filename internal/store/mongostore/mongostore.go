// Package mongostore keeps donor records in a MongoDB collection. Documents
// use the same field names as the donor filters so constraints map onto
// equality filters one to one.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vbonduro/donormap/internal/domain"
)

const collectionName = "donors"

// queryable lists the document fields a constraint may name.
var queryable = map[string]bool{
	domain.FieldBloodGroup:   true,
	domain.FieldAvailability: true,
}

type donorDoc struct {
	ID                primitive.ObjectID `bson:"_id"`
	Name              string             `bson:"name"`
	BloodGroup        string             `bson:"bloodGroup"`
	Contact           string             `bson:"contact"`
	Latitude          *float64           `bson:"latitude,omitempty"`
	Longitude         *float64           `bson:"longitude,omitempty"`
	Availability      string             `bson:"availability"`
	Age               string             `bson:"age,omitempty"`
	Weight            string             `bson:"weight,omitempty"`
	LastDonation      string             `bson:"lastDonation,omitempty"`
	MedicalConditions string             `bson:"medicalConditions,omitempty"`
	Timestamp         *time.Time         `bson:"timestamp,omitempty"`
	UserID            string             `bson:"userId,omitempty"`
	UserEmail         string             `bson:"userEmail,omitempty"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(collectionName)}
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the single-field indexes backing the two filter
// dimensions. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: domain.FieldBloodGroup, Value: 1}}, Options: options.Index().SetName("idx_bloodGroup")},
		{Keys: bson.D{{Key: domain.FieldAvailability, Value: 1}}, Options: options.Index().SetName("idx_availability")},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create donor indexes: %w", domain.ErrStore, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, d *domain.Donor) (*domain.Donor, error) {
	doc := toDoc(d)
	doc.ID = primitive.NewObjectID()
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: failed to create donor: %w", domain.ErrStore, err)
	}
	return fromDoc(doc), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Donor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc donorDoc
	err = s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get donor: %w", domain.ErrStore, err)
	}
	return fromDoc(doc), nil
}

// QueryDonors narrows the collection by one equality term per constraint.
func (s *Store) QueryDonors(ctx context.Context, constraints []domain.Constraint) ([]*domain.Donor, error) {
	filter, err := buildFilter(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query donors: %w", domain.ErrStore, err)
	}
	defer cur.Close(ctx)

	var docs []donorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode donors: %w", domain.ErrStore, err)
	}

	donors := make([]*domain.Donor, 0, len(docs))
	for _, doc := range docs {
		donors = append(donors, fromDoc(doc))
	}
	return donors, nil
}

func buildFilter(constraints []domain.Constraint) (bson.D, error) {
	filter := bson.D{}
	for _, c := range constraints {
		if !queryable[c.Field] {
			return nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		if c.Op != domain.OpEqual {
			return nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		filter = append(filter, bson.E{Key: c.Field, Value: c.Value})
	}
	return filter, nil
}

func toDoc(d *domain.Donor) donorDoc {
	return donorDoc{
		Name:              d.Name,
		BloodGroup:        string(d.BloodGroup),
		Contact:           d.Contact,
		Latitude:          d.Latitude,
		Longitude:         d.Longitude,
		Availability:      string(d.Availability),
		Age:               d.Age,
		Weight:            d.Weight,
		LastDonation:      d.LastDonation,
		MedicalConditions: d.MedicalConditions,
		Timestamp:         d.Timestamp,
		UserID:            d.UserID,
		UserEmail:         d.UserEmail,
	}
}

func fromDoc(doc donorDoc) *domain.Donor {
	return &domain.Donor{
		ID:                doc.ID.Hex(),
		Name:              doc.Name,
		BloodGroup:        domain.BloodGroup(doc.BloodGroup),
		Contact:           doc.Contact,
		Latitude:          doc.Latitude,
		Longitude:         doc.Longitude,
		Availability:      domain.Availability(doc.Availability),
		Age:               doc.Age,
		Weight:            doc.Weight,
		LastDonation:      doc.LastDonation,
		MedicalConditions: doc.MedicalConditions,
		Timestamp:         doc.Timestamp,
		UserID:            doc.UserID,
		UserEmail:         doc.UserEmail,
	}
}
