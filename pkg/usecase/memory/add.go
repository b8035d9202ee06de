package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Add embeds content and persists it as a new memory.
// 1. Generate the embedding vector via the provider
// 2. Persist the record as one logical unit
// 3. Return the stored memory with its generated ID
func (u *UseCase) Add(ctx context.Context, content string) (*model.Memory, error) {
	if content == "" {
		return nil, goerr.New("content must not be empty",
			goerr.T(model.TagInvalidArgument))
	}

	embedding, err := u.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	mem := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   content,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}

	if err := u.repo.Put(ctx, mem); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("memory added", "id", mem.ID, "dimensions", len(embedding))

	return mem, nil
}
