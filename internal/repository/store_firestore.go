package repository

import (
	"context"
	"fmt"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// NewFirestoreClient opens a Firestore client for the configured project.
// Without a credentials file the default application credentials are used.
func NewFirestoreClient(ctx context.Context, cfg config.FirestoreConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create firestore client: %w", err)
	}
	return client, nil
}

// FirestoreBookingStore keeps one document per booking. Document ids are
// generated by Firestore and returned as booking ids.
type FirestoreBookingStore struct {
	coll *firestore.CollectionRef
}

func NewFirestoreBookingStore(client *firestore.Client, collection string) *FirestoreBookingStore {
	return &FirestoreBookingStore{coll: client.Collection(collection)}
}

// FetchAll returns every document. It does not order by createdAt because
// such a query would drop documents without that field.
func (s *FirestoreBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	iter := s.coll.Documents(ctx)
	defer iter.Stop()

	var records []models.BookingRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate bookings: %w", err)
		}
		records = append(records, recordFromFirestore(doc.Ref.ID, doc.Data()))
	}
	return records, nil
}

func (s *FirestoreBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	ref, _, err := s.coll.Add(ctx, recordToFirestore(record))
	if err != nil {
		return "", fmt.Errorf("add booking: %w", err)
	}
	return ref.ID, nil
}

// RemoveByID deletes the document; Firestore treats a missing document as success.
func (s *FirestoreBookingStore) RemoveByID(ctx context.Context, id string) error {
	if _, err := s.coll.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// recordToFirestore drops the id, which Firestore assigns, and stores
// createdAt as a timestamp.
func recordToFirestore(record models.BookingRecord) map[string]interface{} {
	data := map[string]interface{}(record.WithoutID())
	if created := record.Time(models.FieldCreatedAt); !created.IsZero() {
		data[models.FieldCreatedAt] = created
	}
	return data
}

func recordFromFirestore(id string, data map[string]interface{}) models.BookingRecord {
	return models.BookingRecord(data).WithID(id)
}
