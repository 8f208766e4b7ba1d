// Package syncbridge implements the Sync Bridge (spec §4.5): it keeps
// Git-backed knowledge items and their memory-layer pointer entries
// eventually consistent, walking commits since the last synced hash per
// (tenant, knowledge-layer) and reconciling pointer memory entries by
// content hash.
package syncbridge

import (
	"sync"
	"time"

	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider"
)

// State is the persisted per-(tenant, knowledge-layer) sync record (spec
// §4.5 "State", §6 "Sync state").
type State struct {
	LastCommitHash string
	LastSyncAt     time.Time
}

func stateKey(tenantID string, layer mkctypes.KnowledgeLayer) string {
	return tenantID + ":" + string(layer)
}

// StateStore persists sync State, keyed by (tenant, knowledge-layer)
// (spec §6 "Sync state: key-value records"). Backed by provider.Cache —
// sync state is small, frequently-read, and tolerates last-writer-wins,
// matching the cache adapter's own consistency model (spec §5 "Cache
// keys are non-locking; last-writer-wins is acceptable").
type StateStore struct {
	cache provider.Cache
}

func NewStateStore(cache provider.Cache) *StateStore {
	return &StateStore{cache: cache}
}

func (s *StateStore) Get(tenantID string, layer mkctypes.KnowledgeLayer) (State, bool) {
	data, ok := s.cache.Get("syncstate:" + stateKey(tenantID, layer))
	if !ok {
		return State{}, false
	}
	st, err := decodeState(data)
	if err != nil {
		return State{}, false
	}
	return st, true
}

func (s *StateStore) Set(tenantID string, layer mkctypes.KnowledgeLayer, st State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	return s.cache.Set("syncstate:"+stateKey(tenantID, layer), data, 0)
}

// locks provides the Sync Bridge's single-writer-per-(tenant,layer)
// exclusion (spec §5 "The Sync Bridge holds an exclusive sync lock per
// (tenant, knowledge-layer)"), mirroring the Knowledge Store's own
// per-key sync.Map-of-mutexes discipline (internal/knowledge/store.go).
type locks struct {
	m sync.Map
}

func (l *locks) forKey(tenantID string, layer mkctypes.KnowledgeLayer) *sync.Mutex {
	v, _ := l.m.LoadOrStore(stateKey(tenantID, layer), &sync.Mutex{})
	return v.(*sync.Mutex)
}
