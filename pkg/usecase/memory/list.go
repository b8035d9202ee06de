package memory

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// List returns all stored memories in insertion order. An empty store
// yields an empty slice, never an error.
func (u *UseCase) List(ctx context.Context) ([]*model.Memory, error) {
	return u.repo.List(ctx)
}
