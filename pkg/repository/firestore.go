package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
)

const (
	memoryCollection = "memories"
	distanceField    = "vector_distance"
)

// Firestore is the managed backend. Similarity ranking is delegated to the
// service's native FindNearest query; no local similarity computation.
type Firestore struct {
	client *firestore.Client
}

type memoryDoc struct {
	ID        string             `firestore:"id"`
	Content   string             `firestore:"content"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	CreatedAt time.Time          `firestore:"created_at"`
}

// NewFirestore creates a Firestore-backed repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (x *Firestore) Put(ctx context.Context, mem *model.Memory) error {
	doc := memoryDoc{
		ID:        string(mem.ID),
		Content:   mem.Content,
		Embedding: mem.Embedding,
		CreatedAt: mem.CreatedAt,
	}

	// Create rejects duplicate IDs instead of overwriting
	if _, err := x.client.Collection(memoryCollection).Doc(doc.ID).Create(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to create memory document",
			goerr.V("id", mem.ID),
			goerr.T(model.TagStorageWriteFailed))
	}

	return nil
}

func (x *Firestore) List(ctx context.Context) ([]*model.Memory, error) {
	iter := x.client.Collection(memoryCollection).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory documents",
				goerr.T(model.TagStorageReadFailed))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory document",
				goerr.V("doc", snap.Ref.ID),
				goerr.T(model.TagStorageReadFailed))
		}

		memories = append(memories, &model.Memory{
			ID:        model.MemoryID(doc.ID),
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
		})
	}

	return memories, nil
}

func (x *Firestore) Search(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	query := x.client.Collection(memoryCollection).FindNearest(
		"embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*model.SearchResult
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run vector search",
				goerr.T(model.TagStorageReadFailed))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory document",
				goerr.V("doc", snap.Ref.ID),
				goerr.T(model.TagStorageReadFailed))
		}

		// Firestore reports cosine distance; convert to similarity
		score := 0.0
		if d, ok := snap.Data()[distanceField].(float64); ok {
			score = 1 - d
		}

		results = append(results, &model.SearchResult{
			ID:        model.MemoryID(doc.ID),
			Content:   doc.Content,
			Score:     score,
			CreatedAt: doc.CreatedAt,
		})
	}

	return results, nil
}

func (x *Firestore) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
