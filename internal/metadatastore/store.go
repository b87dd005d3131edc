package metadatastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO — same choice the teacher's BM25 store makes

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// Config tunes the WAL pragmas. Zero values fall back to spec defaults (8MB
// page cache, 256MB mmap window). The pipeline opens the store with
// DefaultConfig; SQLiteCacheMB in internal/config is not passed through.
type Config struct {
	CacheMB int
	MmapMB  int
}

func DefaultConfig() Config {
	return Config{CacheMB: 8, MmapMB: 256}
}

// Store is a WAL-mode SQLite-backed Chunk record store. A single connection
// is used deliberately — SQLite allows only one writer regardless, and WAL
// mode gives concurrent readers without a pool.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity opens path read-only and runs PRAGMA integrity_check
// before the real connection is established, so a corrupt file is detected
// and cleared instead of wedging every subsequent open.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if necessary) the metadata store at path. An empty
// path opens an in-memory database, used by tests.
func Open(path string, cfg Config) (*Store, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, lumenerrors.StorageErr("failed to create metadata store directory", err)
		}
		if err := validateIntegrity(path); err != nil {
			slog.Warn("metadata store corrupted, clearing and reindexing",
				slog.String("path", path), slog.String("error", err.Error()))
			os.Remove(path)
			os.Remove(path + "-wal")
			os.Remove(path + "-shm")
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lumenerrors.StorageErr("failed to open metadata store", err)
	}

	// Single writer; WAL mode handles concurrent readers without a pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cacheMB := cfg.CacheMB
	if cacheMB <= 0 {
		cacheMB = 8
	}
	mmapMB := cfg.MmapMB
	if mmapMB <= 0 {
		mmapMB = 256
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		fmt.Sprintf("PRAGMA mmap_size = %d", mmapMB*1024*1024),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, lumenerrors.StorageErr("failed to configure metadata store", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY,
		file_hash TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT,
		file_size INTEGER,
		text TEXT,
		chunk_index INTEGER DEFAULT 0,
		total_chunks INTEGER DEFAULT 1,
		modified_date TEXT,
		symbol_names TEXT DEFAULT '',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_files_hash ON files (file_hash);
	CREATE INDEX IF NOT EXISTS idx_files_path ON files (file_path);
	CREATE INDEX IF NOT EXISTS idx_files_name ON files (file_name);

	CREATE TABLE IF NOT EXISTS index_metadata (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		mode TEXT NOT NULL,
		use_binary INTEGER DEFAULT 1,
		dim INTEGER DEFAULT 384,
		total_vectors INTEGER DEFAULT 0,
		last_updated TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		content,
		content='files',
		content_rowid='id',
		tokenize='unicode61'
	);
	CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
		INSERT INTO fts_chunks(rowid, content) VALUES (new.id, new.text);
	END;
	CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
		INSERT INTO fts_chunks(fts_chunks, rowid, content) VALUES ('delete', old.id, old.text);
	END;
	CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
		INSERT INTO fts_chunks(fts_chunks, rowid, content) VALUES ('delete', old.id, old.text);
		INSERT INTO fts_chunks(rowid, content) VALUES (new.id, new.text);
	END;
	`
	if _, err := s.db.Exec(schema); err != nil {
		return lumenerrors.StorageErr("failed to initialize metadata schema", err)
	}
	return nil
}

func (s *Store) InsertChunk(ctx context.Context, c Chunk) error {
	return s.BatchInsertChunks(ctx, []Chunk{c})
}

func (s *Store) BatchInsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lumenerrors.StorageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files
		(id, file_hash, file_path, file_name, file_type, file_size,
		 text, chunk_index, total_chunks, modified_date, symbol_names)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return lumenerrors.StorageErr("failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.FileHash, c.FilePath, c.FileName,
			c.FileType, c.FileSize, c.Text, c.ChunkIndex, c.TotalChunks, c.ModifiedDate,
			c.SymbolNames); err != nil {
			return lumenerrors.StorageErr(fmt.Sprintf("failed to insert chunk %d", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return lumenerrors.StorageErr("failed to commit batch insert", err)
	}
	return nil
}

// FillInTotalChunks overwrites the TotalChunksPending sentinel for every
// chunk belonging to fileHash, the one mutation a Chunk ever receives after
// insert.
func (s *Store) FillInTotalChunks(ctx context.Context, fileHash string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET total_chunks = ? WHERE file_hash = ?`, total, fileHash)
	if err != nil {
		return lumenerrors.StorageErr("failed to fill in total_chunks", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// FetchByID returns chunks in the same order as the requested ids. Ids with
// no matching row are simply omitted.
func (s *Store) FetchByID(ctx context.Context, ids []int64) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lumenerrors.StorageErr("metadata store is closed", nil)
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, file_hash, file_path, file_name, file_type, file_size,
		       text, chunk_index, total_chunks, modified_date, symbol_names
		FROM files WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, lumenerrors.StorageErr("failed to fetch chunks by id", err)
	}
	defer rows.Close()

	byID := make(map[int64]Chunk, len(ids))
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileHash, &c.FilePath, &c.FileName, &c.FileType,
			&c.FileSize, &c.Text, &c.ChunkIndex, &c.TotalChunks, &c.ModifiedDate,
			&c.SymbolNames); err != nil {
			return nil, lumenerrors.StorageErr("failed to scan chunk row", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, lumenerrors.StorageErr("failed reading chunk rows", err)
	}

	ordered := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func (s *Store) CheckHashExists(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE file_hash = ? LIMIT 1`, hash).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, lumenerrors.StorageErr("failed to check hash existence", err)
	}
	return true, nil
}

func (s *Store) GetIDsByHashes(ctx context.Context, hashes []string) ([]int64, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lumenerrors.StorageErr("metadata store is closed", nil)
	}

	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}
	query := fmt.Sprintf(`SELECT id FROM files WHERE file_hash IN (%s)`, placeholders(len(hashes)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, lumenerrors.StorageErr("failed to get ids by hashes", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, lumenerrors.StorageErr("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetIDsByPath returns ids whose file_path starts with prefix (case-sensitive).
func (s *Store) GetIDsByPath(ctx context.Context, prefix string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lumenerrors.StorageErr("metadata store is closed", nil)
	}

	// substr comparison against the default BINARY collation keeps this
	// case-sensitive without needing to escape LIKE/GLOB wildcard chars
	// that might appear in a real filesystem path.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM files WHERE substr(file_path, 1, length(?)) = ?`, prefix, prefix)
	if err != nil {
		return nil, lumenerrors.StorageErr("failed to get ids by path", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, lumenerrors.StorageErr("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, lumenerrors.StorageErr("metadata store is closed", nil)
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM files WHERE id IN (%s)`, placeholders(len(ids)))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, lumenerrors.StorageErr("failed to delete by ids", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, lumenerrors.StorageErr("failed to read delete result", err)
	}
	return int(n), nil
}

func (s *Store) DeleteByHashes(ctx context.Context, hashes []string) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, lumenerrors.StorageErr("metadata store is closed", nil)
	}

	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}
	query := fmt.Sprintf(`DELETE FROM files WHERE file_hash IN (%s)`, placeholders(len(hashes)))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, lumenerrors.StorageErr("failed to delete by hashes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, lumenerrors.StorageErr("failed to read delete result", err)
	}
	return int(n), nil
}

func (s *Store) GetMaxID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM files`).Scan(&maxID); err != nil {
		return 0, lumenerrors.StorageErr("failed to get max id", err)
	}
	return maxID.Int64, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, lumenerrors.StorageErr("failed to count chunks", err)
	}
	return n, nil
}

func (s *Store) CountUniqueFiles(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file_hash) FROM files`).Scan(&n); err != nil {
		return 0, lumenerrors.StorageErr("failed to count unique files", err)
	}
	return n, nil
}

func (s *Store) UpdateIndexMetadata(ctx context.Context, meta IndexMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_metadata (id, mode, use_binary, dim, total_vectors, last_updated)
		VALUES (1, ?, ?, ?, ?, ?)
	`, meta.Mode, meta.UseBinary, meta.Dim, meta.TotalVectors, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return lumenerrors.StorageErr("failed to update index metadata", err)
	}
	return nil
}

func (s *Store) GetIndexMetadata(ctx context.Context) (*IndexMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	var meta IndexMetadata
	var useBinary int
	err := s.db.QueryRowContext(ctx, `
		SELECT mode, use_binary, dim, total_vectors, last_updated FROM index_metadata WHERE id = 1
	`).Scan(&meta.Mode, &useBinary, &meta.Dim, &meta.TotalVectors, &meta.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, lumenerrors.StorageErr("failed to get index metadata", err)
	}
	meta.UseBinary = useBinary != 0
	return &meta, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lumenerrors.StorageErr("failed to begin clear transaction", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM files`, `DELETE FROM index_metadata`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return lumenerrors.StorageErr("failed to clear metadata store", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return lumenerrors.StorageErr("failed to commit clear", err)
	}
	return nil
}

func (s *Store) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return lumenerrors.StorageErr("failed to vacuum metadata store", err)
	}
	return nil
}

// Checkpoint forces a WAL journal truncation, folding all committed writes
// back into the main database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lumenerrors.StorageErr("metadata store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return lumenerrors.StorageErr("failed to checkpoint metadata store", err)
	}
	return nil
}

// SearchBM25 is the optional secondary ranking signal (SPEC_FULL §10):
// off-by-default FTS5 full-text search over chunk text, used by
// Processor.SearchHybrid to combine ranks with the dense vector score.
func (s *Store) SearchBM25(ctx context.Context, query string, limit int) ([]BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lumenerrors.StorageErr("metadata store is closed", nil)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, bm25(fts_chunks) FROM fts_chunks WHERE fts_chunks MATCH ?
		ORDER BY bm25(fts_chunks) LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, lumenerrors.StorageErr("bm25 search failed", err)
	}
	defer rows.Close()

	var results []BM25Result
	for rows.Next() {
		var r BM25Result
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, lumenerrors.StorageErr("failed to scan bm25 result", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return s.db.Close()
}
