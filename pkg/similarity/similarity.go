// Package similarity ranks candidate vectors against a query vector by
// cosine similarity. It has no dependency on any storage engine; backends
// without native vector search feed it their full record set (linear scan).
package similarity

import (
	"math"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Candidate is one (id, vector) pair to be scored. Candidates must be given
// in insertion order: score ties rank the earlier candidate first.
type Candidate struct {
	ID     model.MemoryID
	Vector []float32
}

// Scored is a ranked candidate with its cosine similarity score.
type Scored struct {
	ID    model.MemoryID
	Score float64
}

// Rank scores all candidates against query and returns at most limit
// results ordered by descending score. All vectors must share the query's
// dimensionality; a mismatch fails with model.TagDimensionMismatch.
// Zero vectors score 0 against anything.
func Rank(query []float32, candidates []Candidate, limit int) ([]Scored, error) {
	if limit <= 0 {
		return nil, goerr.New("limit must be positive",
			goerr.V("limit", limit), goerr.T(model.TagInvalidArgument))
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, goerr.New("embedding dimension mismatch",
				goerr.V("id", c.ID),
				goerr.V("query_dim", len(query)),
				goerr.V("candidate_dim", len(c.Vector)),
				goerr.T(model.TagDimensionMismatch))
		}
		scored = append(scored, Scored{ID: c.ID, Score: Cosine(query, c.Vector)})
	}

	// Stable sort keeps insertion order among equal scores
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Cosine returns the cosine similarity of two equal-length vectors,
// defined as 0 when either vector is the zero vector.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
