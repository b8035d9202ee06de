package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Search ranks stored memories against the query by cosine similarity.
// 1. Generate the query embedding via the provider
// 2. Rank all stored records in the bound backend
// 3. Return up to limit results ordered by descending score
func (u *UseCase) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	if query == "" {
		return nil, goerr.New("query must not be empty",
			goerr.T(model.TagInvalidArgument))
	}
	if limit <= 0 {
		return nil, goerr.New("limit must be positive",
			goerr.V("limit", limit),
			goerr.T(model.TagInvalidArgument))
	}

	embedding, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return u.repo.Search(ctx, embedding, limit)
}
