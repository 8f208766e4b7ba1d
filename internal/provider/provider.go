// Package provider defines the narrow backend-adapter contracts behind
// which every memory layer and the knowledge store hide their storage
// engine (spec §2 "Provider Adapter pattern", §4.7 domain stack). Each
// adapter is responsible for enforcing tenant isolation internally: no
// caller outside this package composes a cross-tenant query.
//
// The shape of these interfaces is grounded on codenerd's LocalStore
// (internal/store/local_core.go), which exposes one struct with many
// per-concern methods over a single *sql.DB; here that concern-per-method
// surface is split into one small interface per storage concern so each
// backend can be swapped independently, the way codenerd's VirtualStore
// wraps a factstore.FactStore without changing its callers
// (internal/core/virtual_fact_store.go).
package provider

import "context"

// VectorRecord is one entry in a VectorStore, keyed by ID within a
// tenant-scoped collection.
type VectorRecord struct {
	ID        string
	Vector    []float32
	Payload   map[string]string
	Truncated bool
}

// VectorMatch is a VectorStore search hit.
type VectorMatch struct {
	Record     VectorRecord
	Similarity float64
}

// VectorStore is a nearest-neighbor search backend, implemented over
// sqlite-vec (provider/vectorstore).
type VectorStore interface {
	Upsert(ctx context.Context, collection string, rec VectorRecord) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (*VectorRecord, bool, error)
	Search(ctx context.Context, collection string, query []float32, limit int) ([]VectorMatch, error)
	List(ctx context.Context, collection string) ([]VectorRecord, error)
	Close() error
}

// Document is one entry in an OrderedDocStore: an opaque JSON payload
// keyed by ID, with a total order for pagination.
type Document struct {
	ID      string
	Payload []byte
	Seq     int64
}

// OrderedDocStore is an insertion-ordered document backend, implemented
// over modernc.org/sqlite (provider/ordereddoc). It implements the
// "ordered-doc" backend class; no layer in mkctypes.LayerSpecs uses it.
type OrderedDocStore interface {
	Put(ctx context.Context, table, id string, payload []byte) error
	Get(ctx context.Context, table, id string) (*Document, bool, error)
	Delete(ctx context.Context, table, id string) error
	List(ctx context.Context, table string, limit int) ([]Document, error)
	Close() error
}

// Cache is a TTL-bounded key/value backend implemented over
// hashicorp/golang-lru (provider/cache). It backs the cache backend
// class used by the Agent and Session layers.
type Cache interface {
	Set(key string, value []byte, ttlSeconds int64) error
	Get(key string) ([]byte, bool)
	Delete(key string)
	Len() int
}

// FactStore is a procedural/Datalog fact backend implemented over
// google/mangle (provider/factstore). It backs layers whose spec
// backend class is "fact" (Team).
type FactStore interface {
	AddFact(predicate string, args ...any) error
	Query(predicate string, arity int) ([]map[string]any, error)
	RemoveFact(predicate string, args ...any) error
	PredicateCount() int
}

// GitBackend is the commit/read surface over a knowledge repository,
// implemented over go-git/v5 (provider/git).
type GitBackend interface {
	Commit(ctx context.Context, repoPath string, files map[string][]byte, message, authorName, authorEmail string) (hash string, err error)
	ReadFile(ctx context.Context, repoPath, relPath string) ([]byte, error)
	DeleteFile(ctx context.Context, repoPath string, files []string, message, authorName, authorEmail string) (hash string, err error)
	Log(ctx context.Context, repoPath string, maxEntries int) ([]CommitInfo, error)
	EnsureRepo(ctx context.Context, repoPath string) error
	ListFiles(ctx context.Context, repoPath string) ([]string, error)
}

// CommitInfo is a minimal log entry returned by GitBackend.Log.
type CommitInfo struct {
	Hash    string
	Message string
}
