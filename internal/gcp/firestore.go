package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// RunLedger records text-base runs in a Firestore collection, one document per run.
type RunLedger struct {
	client     *firestore.Client
	collection string
}

func NewRunLedger(client *firestore.Client, collection string) *RunLedger {
	return &RunLedger{client: client, collection: collection}
}

// FindByHash returns the ID of a run already recorded for this metadata file hash.
func (l *RunLedger) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	docs, err := l.client.Collection(l.collection).Where("metadataHash", "==", hash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// Create stores run under its run ID.
func (l *RunLedger) Create(ctx context.Context, run models.Run) error {
	if _, err := l.client.Collection(l.collection).Doc(run.RunID).Create(ctx, run); err != nil {
		return fmt.Errorf("failed to create run document: %w", err)
	}
	return nil
}

// Update applies field updates to a run document.
func (l *RunLedger) Update(ctx context.Context, runID string, updates []firestore.Update) error {
	if _, err := l.client.Collection(l.collection).Doc(runID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	return nil
}
