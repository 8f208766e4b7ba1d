// Package ordereddoc implements provider.OrderedDocStore over
// modernc.org/sqlite, the pure-Go driver codenerd falls back to when cgo
// is unavailable. Implements the "ordered-doc" backend class (spec §4.1);
// no layer in mkctypes.LayerSpecs is currently routed to it.
package ordereddoc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/provider"
)

// Store is a SQLite-backed provider.OrderedDocStore keyed by (table, id)
// with an autoincrement sequence giving callers a total insertion order.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

var _ provider.OrderedDocStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Open", "", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Open", "", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Open", "", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) ensureTable(table string) error {
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		seq INTEGER,
		payload BLOB NOT NULL
	)`, sanitizeTable(table))
	_, err := s.db.Exec(ddl)
	return err
}

// sanitizeTable restricts table identifiers to the charset tenant.Router
// produces ("{prefix}_{tenant}_{layer}"), since SQL does not support
// parameterized identifiers.
func sanitizeTable(table string) string {
	out := make([]byte, 0, len(table))
	for i := 0; i < len(table); i++ {
		c := table[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return "doc_" + string(out)
}

func (s *Store) Put(ctx context.Context, table, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureTable(table); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Put", "", err)
	}
	t := sanitizeTable(table)
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(seq) FROM %s", t)).Scan(&maxSeq); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Put", "", err)
	}
	next := maxSeq.Int64 + 1

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (id, seq, payload) VALUES (?, ?, ?)", t),
		id, next, payload)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Put", "", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, id string) (*provider.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureTable(table); err != nil {
		return nil, false, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Get", "", err)
	}
	t := sanitizeTable(table)
	var doc provider.Document
	doc.ID = id
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT seq, payload FROM %s WHERE id = ?", t), id).
		Scan(&doc.Seq, &doc.Payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Get", "", err)
	}
	return &doc, true, nil
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureTable(table); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Delete", "", err)
	}
	t := sanitizeTable(table)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t), id)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.Delete", "", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, table string, limit int) ([]provider.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureTable(table); err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.List", "", err)
	}
	t := sanitizeTable(table)
	query := fmt.Sprintf("SELECT id, seq, payload FROM %s ORDER BY seq ASC", t)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.List", "", err)
	}
	defer rows.Close()

	var out []provider.Document
	for rows.Next() {
		var d provider.Document
		if err := rows.Scan(&d.ID, &d.Seq, &d.Payload); err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "ordereddoc.List", "", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
