package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces" // registers the vec0 virtual table module
	_ "github.com/ncruces/go-sqlite3/driver"              // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"               // ships the WASM-compiled SQLite the driver runs
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SQLiteStore is the sqlite-vec backed implementation of Store. Vectors live
// in a vec0 virtual table partitioned by user_id so a KNN search never
// crosses a scope boundary at the index level; everything else lives in a
// companion relational table joined by id.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// Open creates (or attaches to) the sqlite-vec table at path, sized for
// vectors of dimension dim. path may be ":memory:" for tests.
func Open(ctx context.Context, path string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, newErr(KindIO, "open", err)
	}
	db.SetMaxOpenConns(1) // sqlite-vec + the wazero-backed driver are happiest single-writer

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, newErr(KindIO, "open: "+p, err)
		}
	}

	s := &SQLiteStore{db: db, dim: dim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memories (
	id            TEXT PRIMARY KEY,
	memory        TEXT NOT NULL,
	chunk         TEXT NOT NULL DEFAULT '',
	user_id       TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	type          TEXT NOT NULL,
	hash          TEXT NOT NULL,
	superseded_by TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user_active ON memories(user_id, superseded_by);
CREATE INDEX IF NOT EXISTS idx_memories_user_hash ON memories(user_id, hash);
CREATE INDEX IF NOT EXISTS idx_memories_user_type ON memories(user_id, type);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(
	id        TEXT PRIMARY KEY,
	user_id   TEXT PARTITION KEY,
	embedding FLOAT[%d] distance_metric=cosine
);
`, s.dim)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return newErr(KindIO, "migrate", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Refresh is a no-op for the sqlite backend: all readers share the same WAL
// file and already see every committed write. It exists to satisfy the
// interface documented for backends (like a columnar/LanceDB table) where
// reopening the handle is required to observe external writers.
func (s *SQLiteStore) Refresh(ctx context.Context) error { return nil }

func (s *SQLiteStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE user_id = ? AND superseded_by = ''`, userID,
	).Scan(&n)
	if err != nil {
		return 0, newErr(KindIO, "count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if len(r.Vector) != s.dim {
			return newErr(KindDim, "insert", fmt.Errorf("vector has %d dims, want %d", len(r.Vector), s.dim))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newErr(KindIO, "insert: begin", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE id = ?`, r.ID).Scan(&exists); err != nil {
			return newErr(KindIO, "insert: exists check", err)
		}
		if exists > 0 {
			return newErr(KindArg, "insert", fmt.Errorf("id %q already exists", r.ID))
		}

		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return newErr(KindArg, "insert: marshal metadata", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO memories (id, memory, chunk, user_id, metadata, type, hash, superseded_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Memory, r.Chunk, r.UserID, string(metaJSON), r.Type, r.Hash, r.SupersededBy,
			r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return newErr(KindIO, "insert: memories", err)
		}

		vec, err := encodeVector(r.Vector)
		if err != nil {
			return newErr(KindArg, "insert: encode vector", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vec_memories (id, user_id, embedding) VALUES (?, ?, ?)
		`, r.ID, r.UserID, vec)
		if err != nil {
			return newErr(KindIO, "insert: vec_memories", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newErr(KindIO, "insert: commit", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch) error {
	if !idPattern.MatchString(id) {
		return newErr(KindArg, "update", fmt.Errorf("invalid id %q", id))
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if patch.Memory != nil {
		sets = append(sets, "memory = ?")
		args = append(args, *patch.Memory)
	}
	if patch.Chunk != nil {
		sets = append(sets, "chunk = ?")
		args = append(args, *patch.Chunk)
	}
	if patch.Metadata != nil {
		metaJSON, err := json.Marshal(patch.Metadata)
		if err != nil {
			return newErr(KindArg, "update: marshal metadata", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, string(metaJSON))
	}
	if patch.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *patch.Type)
	}
	if patch.SupersededBy != nil {
		sets = append(sets, "superseded_by = ?")
		args = append(args, *patch.SupersededBy)
	}
	if patch.UpdatedAt != nil {
		sets = append(sets, "updated_at = ?")
		args = append(args, patch.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE memories SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return newErr(KindIO, "update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newErr(KindIO, "update: rows affected", err)
	}
	if n == 0 {
		return newErr(KindNotFound, "update", fmt.Errorf("id %q not found", id))
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if !idPattern.MatchString(id) {
		return newErr(KindArg, "delete", fmt.Errorf("invalid id %q", id))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newErr(KindIO, "delete: begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return newErr(KindIO, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newErr(KindIO, "delete: rows affected", err)
	}
	if n == 0 {
		return newErr(KindNotFound, "delete", fmt.Errorf("id %q not found", id))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_memories WHERE id = ?`, id); err != nil {
		return newErr(KindIO, "delete: vec_memories", err)
	}
	if err := tx.Commit(); err != nil {
		return newErr(KindIO, "delete: commit", err)
	}
	return nil
}

// SearchByVector runs the vec0 KNN query scoped to the partition key
// user_id, then re-checks user_id and superseded_by in Go before trusting a
// row — scope isolation is a hard invariant and is never left to a single
// layer (see the same defence-in-depth stance in the retrieval pipeline).
func (s *SQLiteStore) SearchByVector(ctx context.Context, q []float32, userID string, limit int, threshold float64) ([]ScoredRow, error) {
	if len(q) != s.dim {
		return nil, newErr(KindDim, "search_by_vector", fmt.Errorf("query has %d dims, want %d", len(q), s.dim))
	}
	if limit <= 0 {
		return nil, nil
	}
	vec, err := encodeVector(q)
	if err != nil {
		return nil, newErr(KindArg, "search_by_vector: encode", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.memory, m.chunk, m.user_id, m.metadata, m.type, m.hash,
		       m.superseded_by, m.created_at, m.updated_at, (1.0 - v.distance) AS score
		FROM (
			SELECT id, distance FROM vec_memories
			WHERE embedding MATCH ? AND user_id = ? AND k = ?
		) v
		JOIN memories m ON m.id = v.id
		WHERE m.user_id = ? AND m.superseded_by = '' AND (1.0 - v.distance) >= ?
		ORDER BY score DESC, m.updated_at DESC, m.id DESC
	`, vec, userID, limit, userID, threshold)
	if err != nil {
		return nil, newErr(KindIO, "search_by_vector", err)
	}
	defer rows.Close()

	var out []ScoredRow
	for rows.Next() {
		sr, err := scanScoredRow(rows)
		if err != nil {
			return nil, newErr(KindIO, "search_by_vector: scan", err)
		}
		if sr.UserID != userID || sr.SupersededBy != "" {
			continue // defence-in-depth: never trust the SQL filter alone
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(KindIO, "search_by_vector: iterate", err)
	}
	return out, nil
}

func (s *SQLiteStore) FindActiveByHash(ctx context.Context, userID, hash string) (*Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, memory, chunk, user_id, metadata, type, hash, superseded_by, created_at, updated_at
		FROM memories WHERE user_id = ? AND hash = ? AND superseded_by = ''
	`, userID, hash)

	r, err := scanRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, newErr(KindIO, "find_active_by_hash", err)
	}
	return &r, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, userID string, opts ScanOptions) ([]Row, error) {
	query := `
		SELECT id, memory, chunk, user_id, metadata, type, hash, superseded_by, created_at, updated_at
		FROM memories WHERE user_id = ?
	`
	args := []any{userID}
	if !opts.IncludeSuperseded {
		query += " AND superseded_by = ''"
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindIO, "scan", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, newErr(KindIO, "scan: row", err)
		}
		if r.UserID != userID {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(KindIO, "scan: iterate", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(rs rowScanner) (Row, error) {
	var r Row
	var metaJSON, createdAt, updatedAt string
	if err := rs.Scan(&r.ID, &r.Memory, &r.Chunk, &r.UserID, &metaJSON, &r.Type, &r.Hash,
		&r.SupersededBy, &createdAt, &updatedAt); err != nil {
		return Row{}, err
	}
	r.Metadata = decodeMetadata(metaJSON)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

func scanScoredRow(rs rowScanner) (ScoredRow, error) {
	var sr ScoredRow
	var metaJSON, createdAt, updatedAt string
	if err := rs.Scan(&sr.ID, &sr.Memory, &sr.Chunk, &sr.UserID, &metaJSON, &sr.Type, &sr.Hash,
		&sr.SupersededBy, &createdAt, &updatedAt, &sr.Score); err != nil {
		return ScoredRow{}, err
	}
	sr.Metadata = decodeMetadata(metaJSON)
	sr.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sr.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return sr, nil
}

// decodeMetadata parses metadata JSON defensively: malformed JSON yields an
// empty map rather than failing the read (spec §4.9: list parses metadata
// "defensively").
func decodeMetadata(raw string) map[string]string {
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

func encodeVector(v []float32) ([]byte, error) {
	return json.Marshal(v) // sqlite-vec accepts a JSON float array for FLOAT[N] columns
}
