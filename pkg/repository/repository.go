package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Repository is the contract every storage backend satisfies. Embeddings are
// computed by the caller (usecase layer) before reaching a backend; a backend
// only stores vectors and ranks against them.
type Repository interface {
	// Put persists a new memory as one logical unit. The record is visible to
	// List and Search once Put returns nil, and never before.
	Put(ctx context.Context, mem *model.Memory) error

	// List returns every stored memory in insertion order. Embedding fields
	// may be left empty; they are not part of the listing surface.
	List(ctx context.Context) ([]*model.Memory, error)

	// Search ranks all stored memories against the query embedding and
	// returns at most limit results ordered by descending score.
	Search(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error)

	// Close releases the underlying engine connection.
	Close() error
}

// Config selects and parameterizes the backend. Read once at startup; the
// bound backend never changes for the process lifetime.
type Config struct {
	Backend string `yaml:"backend"`

	Firestore FirestoreConfig `yaml:"firestore"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
}

type FirestoreConfig struct {
	ProjectID  string `yaml:"project"`
	DatabaseID string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

// New creates the backend named by cfg.Backend.
func New(ctx context.Context, cfg *Config) (Repository, error) {
	switch cfg.Backend {
	case "firestore":
		return NewFirestore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.DatabaseID)
	case "redis":
		return NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "mysql":
		return NewMySQL(ctx, cfg.MySQL.DSN)
	default:
		return nil, goerr.New("unknown backend",
			goerr.V("backend", cfg.Backend),
			goerr.V("supported", []string{"firestore", "redis", "mysql"}))
	}
}
