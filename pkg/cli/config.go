package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/repository"
	memoryuc "github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values. Flags and environment variables take
// precedence over the optional YAML config file.
type config struct {
	configPath string
	logLevel   string

	// Backend
	backend           string
	firestoreProject  string
	firestoreDatabase string
	redisAddr         string
	redisPassword     string
	redisDB           int64
	mysqlDSN          string

	// Embedding provider
	geminiProject      string
	geminiLocation     string
	embeddingModel     string
	embeddingDimension int64
}

// fileConfig mirrors the YAML config file layout
type fileConfig struct {
	LogLevel string `yaml:"log_level"`

	repository.Config `yaml:",inline"`

	Gemini struct {
		Project        string `yaml:"project"`
		Location       string `yaml:"location"`
		EmbeddingModel string `yaml:"embedding_model"`
		Dimension      int    `yaml:"dimension"`
	} `yaml:"gemini"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("KIOKU_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Storage backend (firestore, redis, mysql)",
			Sources:     cli.EnvVars("KIOKU_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("KIOKU_FIRESTORE_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("KIOKU_FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port)",
			Sources:     cli.EnvVars("KIOKU_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("KIOKU_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("KIOKU_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.StringFlag{
			Name:        "mysql-dsn",
			Usage:       "MySQL DSN (user:pass@tcp(host:port)/dbname)",
			Sources:     cli.EnvVars("KIOKU_MYSQL_DSN"),
			Destination: &cfg.mysqlDSN,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("KIOKU_GEMINI_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("KIOKU_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("KIOKU_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimensionality",
			Value:       768,
			Sources:     cli.EnvVars("KIOKU_EMBEDDING_DIMENSION"),
			Destination: &cfg.embeddingDimension,
		},
	}
}

// load merges the optional YAML config file into unset fields
func (cfg *config) load() error {
	if cfg.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file",
			goerr.V("path", cfg.configPath))
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return goerr.Wrap(err, "failed to parse config file",
			goerr.V("path", cfg.configPath))
	}

	cfg.merge(&file)
	return nil
}

// merge fills fields that were not set by flags or environment variables
func (cfg *config) merge(file *fileConfig) {
	if cfg.backend == "" {
		cfg.backend = file.Backend
	}
	if cfg.firestoreProject == "" {
		cfg.firestoreProject = file.Firestore.ProjectID
	}
	if cfg.firestoreDatabase == "" || cfg.firestoreDatabase == "(default)" {
		if file.Firestore.DatabaseID != "" {
			cfg.firestoreDatabase = file.Firestore.DatabaseID
		}
	}
	if cfg.redisAddr == "" {
		cfg.redisAddr = file.Redis.Addr
	}
	if cfg.redisPassword == "" {
		cfg.redisPassword = file.Redis.Password
	}
	if cfg.redisDB == 0 {
		cfg.redisDB = int64(file.Redis.DB)
	}
	if cfg.mysqlDSN == "" {
		cfg.mysqlDSN = file.MySQL.DSN
	}
	if cfg.geminiProject == "" {
		cfg.geminiProject = file.Gemini.Project
	}
	if file.Gemini.Location != "" && cfg.geminiLocation == "us-central1" {
		cfg.geminiLocation = file.Gemini.Location
	}
	if file.Gemini.EmbeddingModel != "" && cfg.embeddingModel == "gemini-embedding-001" {
		cfg.embeddingModel = file.Gemini.EmbeddingModel
	}
	if file.Gemini.Dimension != 0 && cfg.embeddingDimension == 768 {
		cfg.embeddingDimension = int64(file.Gemini.Dimension)
	}
}

// newRepository creates the backend selected by configuration. The binding
// is made once per process and never re-evaluated.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.backend == "" {
		return nil, goerr.New("backend is required (firestore, redis, or mysql)")
	}

	switch cfg.backend {
	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required for the firestore backend")
		}
	case "redis":
		if cfg.redisAddr == "" {
			return nil, goerr.New("redis-addr is required for the redis backend")
		}
	case "mysql":
		if cfg.mysqlDSN == "" {
			return nil, goerr.New("mysql-dsn is required for the mysql backend")
		}
	}

	repo, err := repository.New(ctx, &repository.Config{
		Backend: cfg.backend,
		Firestore: repository.FirestoreConfig{
			ProjectID:  cfg.firestoreProject,
			DatabaseID: cfg.firestoreDatabase,
		},
		Redis: repository.RedisConfig{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       int(cfg.redisDB),
		},
		MySQL: repository.MySQLConfig{
			DSN: cfg.mysqlDSN,
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newEmbedder creates the Gemini embedding adapter
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}

	embedder, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithDimensions(int(cfg.embeddingDimension)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedder")
	}
	return embedder, nil
}

// newUseCase wires the repository and embedder into a UseCase. The returned
// closer releases the backend connection.
func (cfg *config) newUseCase(ctx context.Context) (*memoryuc.UseCase, func() error, error) {
	if err := cfg.load(); err != nil {
		return nil, nil, err
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	return memoryuc.New(repo, embedder), repo.Close, nil
}
