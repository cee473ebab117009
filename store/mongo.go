package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/consent-lineage/consent-sync-service/domain"
)

const consentRecordsCollection = "consent_records"

const defaultTimeout = 10 * time.Second

// MongoStore keeps the authoritative record per subject in a mongo
// collection, upserting on subject_id.
type MongoStore struct {
	client   *mongo.Client
	database string
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, database: database}
}

type consentRecordDoc struct {
	SubjectID   string    `bson:"subject_id"`
	Payload     []byte    `bson:"consent_payload"`
	CreatedAt   time.Time `bson:"created_at"`
	StoredAt    time.Time `bson:"stored_at,omitempty"`
	RequestAt   time.Time `bson:"request_at,omitempty"`
	ValidatedAt time.Time `bson:"validated_at,omitempty"`
	ExpiresAt   time.Time `bson:"expires_at,omitempty"`
	State       string    `bson:"state"`
	Decision    string    `bson:"decision,omitempty"`
}

func (s *MongoStore) Load(ctx context.Context, subjectID string) (domain.ConsentRecord, bool, error) {
	c := s.client.Database(s.database).Collection(consentRecordsCollection)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc consentRecordDoc
	err := c.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.ConsentRecord{}, false, nil
	}
	if err != nil {
		return domain.ConsentRecord{}, false, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	return domain.ConsentRecord{
		SubjectID:   doc.SubjectID,
		Payload:     doc.Payload,
		CreatedAt:   doc.CreatedAt,
		StoredAt:    doc.StoredAt,
		RequestAt:   doc.RequestAt,
		ValidatedAt: doc.ValidatedAt,
		ExpiresAt:   doc.ExpiresAt,
		State:       domain.State(doc.State),
		Decision:    domain.Decision(doc.Decision),
	}, true, nil
}

func (s *MongoStore) Save(ctx context.Context, record domain.ConsentRecord) error {
	c := s.client.Database(s.database).Collection(consentRecordsCollection)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"subject_id": record.SubjectID}
	update := bson.M{
		"$set": consentRecordDoc{
			SubjectID:   record.SubjectID,
			Payload:     record.Payload,
			CreatedAt:   record.CreatedAt,
			StoredAt:    record.StoredAt,
			RequestAt:   record.RequestAt,
			ValidatedAt: record.ValidatedAt,
			ExpiresAt:   record.ExpiresAt,
			State:       string(record.State),
			Decision:    string(record.Decision),
		},
	}
	if _, err := c.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}
