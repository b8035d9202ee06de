package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
)

func setupMySQL(t *testing.T) *MySQL {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN must be set to run MySQL tests")
	}

	repo, err := NewMySQL(context.Background(), dsn)
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// Dedicated test database; start from an empty table
	_, err = repo.db.ExecContext(context.Background(), "DELETE FROM memories")
	gt.NoError(t, err)

	return repo
}

func TestMySQLPutAndList(t *testing.T) {
	repo := setupMySQL(t)
	ctx := context.Background()

	now := time.Now()
	first := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   "first",
		Embedding: []float32{1, 0},
		CreatedAt: now,
	}
	second := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   "second",
		Embedding: []float32{0, 1},
		CreatedAt: now.Add(time.Millisecond),
	}

	gt.NoError(t, repo.Put(ctx, first))
	gt.NoError(t, repo.Put(ctx, second))

	listed, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, listed).Length(2)
	gt.Equal(t, listed[0].ID, first.ID)
	gt.Equal(t, listed[0].Content, "first")
	gt.Equal(t, listed[1].ID, second.ID)
}

func TestMySQLPutDuplicateID(t *testing.T) {
	repo := setupMySQL(t)
	ctx := context.Background()

	mem := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   "duplicate",
		Embedding: []float32{1, 0},
		CreatedAt: time.Now(),
	}

	gt.NoError(t, repo.Put(ctx, mem))
	gt.Error(t, repo.Put(ctx, mem))
}

func TestMySQLSearch(t *testing.T) {
	repo := setupMySQL(t)
	ctx := context.Background()

	now := time.Now()
	contents := []struct {
		content string
		vector  []float32
	}{
		{"foo", []float32{1, 0, 0}},
		{"bar", []float32{0, 1, 0}},
		{"foobar", []float32{1, 1, 0}},
	}
	for i, c := range contents {
		gt.NoError(t, repo.Put(ctx, &model.Memory{
			ID:        model.NewMemoryID(),
			Content:   c.content,
			Embedding: c.vector,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	results, err := repo.Search(ctx, []float32{1, 1, 0}, 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Content, "foobar")
	gt.True(t, results[0].Score >= results[1].Score)
}

func TestMySQLSearchEmpty(t *testing.T) {
	repo := setupMySQL(t)

	results, err := repo.Search(context.Background(), []float32{1, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestVectorCodec(t *testing.T) {
	original := []float32{0.25, -1.5, 3.14159, 0}

	decoded, err := decodeVector(encodeVector(original))
	gt.NoError(t, err)
	gt.Equal(t, decoded, original)
}

func TestVectorCodecCorruptBlob(t *testing.T) {
	_, err := decodeVector([]byte{0x01, 0x02, 0x03})
	gt.Error(t, err)
}
