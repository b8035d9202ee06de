package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/similarity"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id         CHAR(36)    NOT NULL PRIMARY KEY,
	content    TEXT        NOT NULL,
	embedding  MEDIUMBLOB  NOT NULL,
	created_at DATETIME(6) NOT NULL
)`

// MySQL is the relational backend. One row per memory; the embedding is an
// opaque little-endian float32 blob (the engine has no vector type). Search
// scans every row and ranks via the similarity engine, so it is not intended
// for large record counts.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens the database and creates the schema if missing. The DSN is
// in go-sql-driver format; ParseTime is forced on so DATETIME columns scan
// into time.Time.
func NewMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse mysql DSN")
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open mysql connection")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to connect to mysql",
			goerr.V("addr", cfg.Addr),
			goerr.V("db", cfg.DBName))
	}

	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create memories table")
	}

	return &MySQL{db: db}, nil
}

func (x *MySQL) Put(ctx context.Context, mem *model.Memory) error {
	// Single statement: concurrent readers see the whole row or nothing
	_, err := x.db.ExecContext(ctx,
		"INSERT INTO memories (id, content, embedding, created_at) VALUES (?, ?, ?, ?)",
		string(mem.ID), mem.Content, encodeVector(mem.Embedding), mem.CreatedAt,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert memory row",
			goerr.V("id", mem.ID),
			goerr.T(model.TagStorageWriteFailed))
	}

	return nil
}

func (x *MySQL) List(ctx context.Context) ([]*model.Memory, error) {
	rows, err := x.db.QueryContext(ctx,
		"SELECT id, content, created_at FROM memories ORDER BY created_at ASC",
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select memory rows",
			goerr.T(model.TagStorageReadFailed))
	}
	defer rows.Close()

	var memories []*model.Memory
	for rows.Next() {
		var (
			id, content string
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &content, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory row",
				goerr.T(model.TagStorageReadFailed))
		}
		memories = append(memories, &model.Memory{
			ID:        model.MemoryID(id),
			Content:   content,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory rows",
			goerr.T(model.TagStorageReadFailed))
	}

	return memories, nil
}

func (x *MySQL) Search(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	rows, err := x.db.QueryContext(ctx,
		"SELECT id, content, embedding, created_at FROM memories ORDER BY created_at ASC",
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select memory rows",
			goerr.T(model.TagStorageReadFailed))
	}
	defer rows.Close()

	type row struct {
		content   string
		createdAt time.Time
	}

	var candidates []similarity.Candidate
	byID := make(map[model.MemoryID]row)
	for rows.Next() {
		var (
			id, content string
			blob        []byte
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &content, &blob, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory row",
				goerr.T(model.TagStorageReadFailed))
		}

		vector, err := decodeVector(blob)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding blob",
				goerr.V("id", id),
				goerr.T(model.TagStorageReadFailed))
		}

		candidates = append(candidates, similarity.Candidate{
			ID:     model.MemoryID(id),
			Vector: vector,
		})
		byID[model.MemoryID(id)] = row{content: content, createdAt: createdAt}
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory rows",
			goerr.T(model.TagStorageReadFailed))
	}

	scored, err := similarity.Rank(embedding, candidates, limit)
	if err != nil {
		return nil, err
	}

	// Rows are already in hand; no second lookup needed
	results := make([]*model.SearchResult, 0, len(scored))
	for _, s := range scored {
		r := byID[s.ID]
		results = append(results, &model.SearchResult{
			ID:        s.ID,
			Content:   r.content,
			Score:     s.Score,
			CreatedAt: r.createdAt,
		})
	}

	return results, nil
}

func (x *MySQL) Close() error {
	if err := x.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close mysql connection")
	}
	return nil
}

// encodeVector serializes a vector as little-endian float32 bytes
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, goerr.New("embedding blob size is not a multiple of 4",
			goerr.V("size", len(b)))
	}

	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
