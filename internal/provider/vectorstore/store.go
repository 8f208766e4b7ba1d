// Package vectorstore implements provider.VectorStore over SQLite. Search
// is a brute-force cosine scan; the sqlite-vec extension (sqlite_vec
// build tag) is only detected at Open, not used for search. Adapted from codenerd's internal/store/vector_store.go and
// internal/store/local_core.go (PRAGMA tuning, vec-extension detection).
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/provider"
)

// Store is a SQLite-backed provider.VectorStore. One Store instance may
// serve many tenant-scoped collections (distinct table names), since
// tenant namespacing is the caller's responsibility (internal/tenant).
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	vectorExt bool
	log       *zap.Logger
}

var _ provider.VectorStore = (*Store)(nil)

// Open opens (creating if necessary) a SQLite database at path and
// applies the same WAL/synchronous tuning codenerd uses for its local
// store, tuned for a single-writer embedded workload.
func Open(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Open", "", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Open", "", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("vectorstore pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, log: log}
	s.vectorExt = s.detectVecExtension()
	if s.vectorExt {
		log.Info("sqlite-vec extension detected")
	} else {
		log.Warn("sqlite-vec extension unavailable")
	}
	return s, nil
}

func (s *Store) detectVecExtension() bool {
	var version string
	err := s.db.QueryRow("SELECT vec_version()").Scan(&version)
	return err == nil
}

func (s *Store) tableName(collection string) string {
	return "vec_" + collection
}

func (s *Store) ensureTable(collection string) error {
	table := s.tableName(collection)
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		payload TEXT,
		truncated INTEGER NOT NULL DEFAULT 0
	)`, table)
	_, err := s.db.Exec(ddl)
	return err
}

func encodeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func (s *Store) Upsert(ctx context.Context, collection string, rec provider.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTable(collection); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Upsert", "", err)
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Upsert", "", err)
	}
	truncated := 0
	if rec.Truncated {
		truncated = 1
	}
	table := s.tableName(collection)
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR REPLACE INTO %s (id, embedding, payload, truncated) VALUES (?, ?, ?, ?)", table),
		rec.ID, encodeFloat32(rec.Vector), string(payload), truncated)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Upsert", "", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureTable(collection); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Delete", "", err)
	}
	table := s.tableName(collection)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Delete", "", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*provider.VectorRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureTable(collection); err != nil {
		return nil, false, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Get", "", err)
	}
	table := s.tableName(collection)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id, embedding, payload, truncated FROM %s WHERE id = ?", table), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.Get", "", err)
	}
	return rec, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*provider.VectorRecord, error) {
	var id, payloadStr string
	var embBlob []byte
	var truncated int
	if err := row.Scan(&id, &embBlob, &payloadStr, &truncated); err != nil {
		return nil, err
	}
	var payload map[string]string
	_ = json.Unmarshal([]byte(payloadStr), &payload)
	return &provider.VectorRecord{
		ID:        id,
		Vector:    decodeFloat32(embBlob),
		Payload:   payload,
		Truncated: truncated != 0,
	}, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]provider.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureTable(collection); err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.List", "", err)
	}
	table := s.tableName(collection)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, embedding, payload, truncated FROM %s", table))
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.List", "", err)
	}
	defer rows.Close()

	var out []provider.VectorRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "vectorstore.List", "", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Search performs a brute-force cosine scan, whether or not the
// sqlite-vec extension is loaded; there is no ANN search path. The
// Memory Manager's cross-layer merge materializes all candidates anyway.
func (s *Store) Search(ctx context.Context, collection string, query []float32, limit int) ([]provider.VectorMatch, error) {
	records, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	matches := make([]provider.VectorMatch, 0, len(records))
	for _, rec := range records {
		sim, err := cosineSimilarity(query, rec.Vector)
		if err != nil {
			continue // dimension mismatch: skip rather than fail the whole search
		}
		matches = append(matches, provider.VectorMatch{Record: rec, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, mkcerr.New(mkcerr.VectorDimensionMismatch, "vectorstore.cosineSimilarity", "dimension mismatch")
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(am) * math.Sqrt(bm)), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
