package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory represents one stored record: caller-supplied content plus the
// embedding vector derived from it at creation time. Content and embedding
// are immutable once stored; there is no update or delete operation.
type Memory struct {
	ID        MemoryID
	Content   string
	Embedding firestore.Vector32
	CreatedAt time.Time
}

// SearchResult is a Memory matched by similarity search. Score is cosine
// similarity in [-1, 1]. Embeddings are never exposed through results.
type SearchResult struct {
	ID        MemoryID
	Content   string
	Score     float64
	CreatedAt time.Time
}
