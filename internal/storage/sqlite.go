// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mieru/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		distance TEXT NOT NULL DEFAULT 'cosine',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vectors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		vector BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_vectors_collection ON vectors(collection);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateCollection inserts a collection. The name must be unique.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, col *models.Collection) error {
	if col.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	if col.Distance == "" {
		col.Distance = "cosine"
	}
	col.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimensions, distance, created_at)
		 VALUES (?, ?, ?, ?)`,
		col.Name, col.Dimensions, col.Distance, col.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", col.Name, err)
	}
	return nil
}

// GetCollection returns a collection by name.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	var col models.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, dimensions, distance, created_at
		 FROM collections WHERE name = ?`, name,
	).Scan(&col.Name, &col.Dimensions, &col.Distance, &col.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// ListCollections returns all collections ordered by name.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, dimensions, distance, created_at FROM collections ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*models.Collection
	for rows.Next() {
		var col models.Collection
		if err := rows.Scan(&col.Name, &col.Dimensions, &col.Distance, &col.CreatedAt); err != nil {
			return nil, err
		}
		cols = append(cols, &col)
	}
	return cols, rows.Err()
}

// DeleteCollection removes a collection and, via cascade, its vectors.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("collection not found: %s", name)
	}
	return nil
}

// InsertVector stores a record and returns its assigned id.
// The vector dimension must match the collection.
func (s *SQLiteStorage) InsertVector(ctx context.Context, collection string, rec *models.VectorRecord) (int64, error) {
	col, err := s.GetCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if len(rec.Vector) != col.Dimensions {
		return 0, fmt.Errorf("vector dimension mismatch: got %d, collection %s expects %d",
			len(rec.Vector), collection, col.Dimensions)
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	rec.CreatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO vectors (collection, vector, metadata, created_at)
		 VALUES (?, ?, ?, ?)`,
		collection, encodeVector(rec.Vector), string(metadataJSON), rec.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// GetVector returns a record by id within a collection.
func (s *SQLiteStorage) GetVector(ctx context.Context, collection string, id int64) (*models.VectorRecord, error) {
	var rec models.VectorRecord
	var blob []byte
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, vector, metadata, created_at
		 FROM vectors WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&rec.ID, &blob, &metadataJSON, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vector not found: %d in collection %s", id, collection)
	}
	if err != nil {
		return nil, err
	}

	rec.Vector = decodeVector(blob)
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// ListVectors returns records of a collection ordered by id with offset and limit.
// A non-positive limit returns all remaining records.
func (s *SQLiteStorage) ListVectors(ctx context.Context, collection string, offset, limit int) ([]*models.VectorRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, metadata, created_at
		 FROM vectors WHERE collection = ? ORDER BY id LIMIT ? OFFSET ?`,
		collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.VectorRecord
	for rows.Next() {
		var rec models.VectorRecord
		var blob []byte
		var metadataJSON string
		if err := rows.Scan(&rec.ID, &blob, &metadataJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Vector = decodeVector(blob)
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &rec.Metadata)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// DeleteVector removes a record by id within a collection.
func (s *SQLiteStorage) DeleteVector(ctx context.Context, collection string, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("vector not found: %d in collection %s", id, collection)
	}
	return nil
}

// BatchInsertVectors stores multiple records in a transaction and returns
// their assigned ids in input order.
func (s *SQLiteStorage) BatchInsertVectors(ctx context.Context, collection string, recs []*models.VectorRecord) ([]int64, error) {
	col, err := s.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (collection, vector, metadata, created_at)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		if len(rec.Vector) != col.Dimensions {
			return nil, fmt.Errorf("vector dimension mismatch: got %d, collection %s expects %d",
				len(rec.Vector), collection, col.Dimensions)
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		rec.CreatedAt = now
		result, err := stmt.ExecContext(ctx, collection, encodeVector(rec.Vector), string(metadataJSON), rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		rec.ID = id
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CountCollections returns the total number of collections.
func (s *SQLiteStorage) CountCollections(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&count)
	return count, err
}

// CountVectors returns the number of records in a collection.
func (s *SQLiteStorage) CountVectors(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vectors WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

// decodeVector unpacks little-endian float32 bytes.
func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
