package memory

import (
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/repository"
)

// UseCase provides memory operations over the bound backend
type UseCase struct {
	repo     repository.Repository
	embedder adapter.Embedder
}

// New creates a new memory UseCase instance
func New(repo repository.Repository, embedder adapter.Embedder) *UseCase {
	return &UseCase{
		repo:     repo,
		embedder: embedder,
	}
}
