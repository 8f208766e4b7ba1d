package memory

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider"
)

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// scopeValue returns the identifier value that distinguishes buckets
// within a layer's shared collection/table/cache namespace (e.g. the
// project id for LayerProject), used to filter List/Search results down
// to the caller's scope.
func scopeValue(layer mkctypes.Layer, ids mkctypes.Identifiers) string {
	spec := mkctypes.LayerSpecs[layer]
	if len(spec.RequiredIDs) == 0 {
		return ""
	}
	// The last required id (beyond tenant/user for Agent/Session) is the
	// layer's own scoping field.
	name := spec.RequiredIDs[len(spec.RequiredIDs)-1]
	if layer == mkctypes.LayerAgent {
		name = "agent"
	}
	switch name {
	case "agent":
		return ids.Agent
	case "user":
		return ids.User
	case "session":
		return ids.Session
	case "project":
		return ids.Project
	case "team":
		return ids.Team
	case "org":
		return ids.Org
	case "company":
		return ids.Company
	default:
		return ""
	}
}

func (m *Manager) persist(ctx context.Context, e mkctypes.Entry) error {
	spec := mkctypes.LayerSpecs[e.Layer]
	switch spec.Backend {
	case mkctypes.BackendVector:
		return m.persistVector(ctx, e)
	case mkctypes.BackendCache:
		return m.persistCache(ctx, e)
	case mkctypes.BackendFact:
		return m.persistFact(ctx, e)
	case mkctypes.BackendOrderedDoc:
		return m.persistOrderedDoc(ctx, e)
	default:
		return mkcerr.New(mkcerr.InvalidLayer, "memory.persist", "unroutable backend class")
	}
}

func (m *Manager) collection(layer mkctypes.Layer, tenantID string) string {
	return m.router.VectorCollection(tenantID, layer)
}

func (m *Manager) persistVector(ctx context.Context, e mkctypes.Entry) error {
	if m.backends.Vector == nil {
		return mkcerr.New(mkcerr.ConfigurationError, "memory.persistVector", "no vector store configured")
	}
	payload, err := encodeEntry(e)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistVector", "", err)
	}
	rec := provider.VectorRecord{
		ID:        e.ID,
		Vector:    e.Vector,
		Truncated: e.Truncated,
		Payload:   map[string]string{"entry": string(payload), "scope": scopeValue(e.Layer, e.IDs)},
	}
	collection := m.collection(e.Layer, e.IDs.Tenant)
	if err := m.backends.Vector.Upsert(ctx, collection, rec); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistVector", e.IDs.Tenant, err)
	}
	return nil
}

func (m *Manager) persistOrderedDoc(ctx context.Context, e mkctypes.Entry) error {
	if m.backends.OrderedDoc == nil {
		return mkcerr.New(mkcerr.ConfigurationError, "memory.persistOrderedDoc", "no ordered-doc store configured")
	}
	payload, err := encodeEntry(e)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistOrderedDoc", "", err)
	}
	table := m.router.OrderedTable(e.IDs.Tenant, e.Layer)
	if err := m.backends.OrderedDoc.Put(ctx, table, e.ID, payload); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistOrderedDoc", e.IDs.Tenant, err)
	}
	return nil
}

const cacheIndexSuffix = "__index__"

func (m *Manager) cacheIndexKey(layer mkctypes.Layer, tenantID, scope string) string {
	return m.router.CacheKey(tenantID, string(layer)+":"+scope+":"+cacheIndexSuffix)
}

func (m *Manager) cacheEntryKey(layer mkctypes.Layer, tenantID, id string) string {
	return m.router.CacheKey(tenantID, string(layer)+":entry:"+id)
}

func (m *Manager) persistCache(ctx context.Context, e mkctypes.Entry) error {
	if m.backends.Cache == nil {
		return mkcerr.New(mkcerr.ConfigurationError, "memory.persistCache", "no cache configured")
	}
	payload, err := encodeEntry(e)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistCache", "", err)
	}

	spec := mkctypes.LayerSpecs[e.Layer]
	ttl := int64(0)
	if spec.DefaultTTL != "" {
		if d, perr := parseDurationSeconds(spec.DefaultTTL); perr == nil {
			ttl = d
		}
	}

	key := m.cacheEntryKey(e.Layer, e.IDs.Tenant, e.ID)
	if err := m.backends.Cache.Set(key, payload, ttl); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistCache", e.IDs.Tenant, err)
	}
	return m.cacheIndexAdd(e.Layer, e.IDs.Tenant, scopeValue(e.Layer, e.IDs), e.ID)
}

func (m *Manager) cacheIndexAdd(layer mkctypes.Layer, tenantID, scope, id string) error {
	ids := m.cacheIndexRead(layer, tenantID, scope)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return m.cacheIndexWrite(layer, tenantID, scope, ids)
}

func (m *Manager) cacheIndexRemove(layer mkctypes.Layer, tenantID, scope, id string) error {
	ids := m.cacheIndexRead(layer, tenantID, scope)
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return m.cacheIndexWrite(layer, tenantID, scope, out)
}

func (m *Manager) cacheIndexRead(layer mkctypes.Layer, tenantID, scope string) []string {
	raw, ok := m.backends.Cache.Get(m.cacheIndexKey(layer, tenantID, scope))
	if !ok {
		return nil
	}
	var ids []string
	_ = json.Unmarshal(raw, &ids)
	return ids
}

func (m *Manager) cacheIndexWrite(layer mkctypes.Layer, tenantID, scope string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return m.backends.Cache.Set(m.cacheIndexKey(layer, tenantID, scope), raw, 0)
}

func (m *Manager) persistFact(ctx context.Context, e mkctypes.Entry) error {
	if m.backends.Fact == nil {
		return mkcerr.New(mkcerr.ConfigurationError, "memory.persistFact", "no fact store configured")
	}
	payload, err := encodeEntry(e)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistFact", "", err)
	}
	if err := m.backends.Fact.AddFact(factPredicate(e.IDs.Tenant, e.Layer), e.ID, string(payload)); err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "memory.persistFact", e.IDs.Tenant, err)
	}
	return nil
}

// factPredicate namespaces Mangle predicates by tenant and layer, since
// google/mangle's store has no notion of per-tenant collections the way
// the vector store does.
func factPredicate(tenantID string, layer mkctypes.Layer) string {
	return "mem_" + sanitizePredicate(tenantID) + "_" + string(layer)
}

func sanitizePredicate(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
			continue
		}
		out = append(out, '_')
	}
	return string(out)
}

func parseDurationSeconds(s string) (int64, error) {
	d, err := parseDuration(s)
	if err != nil {
		return 0, err
	}
	return int64(d.Seconds()), nil
}

// Get implements spec §6 memory get.
func (m *Manager) Get(ctx context.Context, layer mkctypes.Layer, tenantID, id string) (*mkctypes.Entry, error) {
	spec := mkctypes.LayerSpecs[layer]
	switch spec.Backend {
	case mkctypes.BackendVector:
		rec, ok, err := m.backends.Vector.Get(ctx, m.collection(layer, tenantID), id)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		if !ok {
			return nil, mkcerr.New(mkcerr.MemoryNotFound, "memory.Get", "no such entry")
		}
		e, err := decodeEntry([]byte(rec.Payload["entry"]))
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		return &e, nil

	case mkctypes.BackendOrderedDoc:
		doc, ok, err := m.backends.OrderedDoc.Get(ctx, m.router.OrderedTable(tenantID, layer), id)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		if !ok {
			return nil, mkcerr.New(mkcerr.MemoryNotFound, "memory.Get", "no such entry")
		}
		e, err := decodeEntry(doc.Payload)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		return &e, nil

	case mkctypes.BackendCache:
		raw, ok := m.backends.Cache.Get(m.cacheEntryKey(layer, tenantID, id))
		if !ok {
			return nil, mkcerr.New(mkcerr.MemoryNotFound, "memory.Get", "no such entry")
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		return &e, nil

	case mkctypes.BackendFact:
		rows, err := m.backends.Fact.Query(factPredicate(tenantID, layer), 2)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
		}
		for _, row := range rows {
			rid := unquoteFact(row["0"])
			if rid != id {
				continue
			}
			if m.factTombstoned(tenantID, layer, id) {
				break
			}
			e, err := decodeEntry([]byte(unquoteFact(row["1"])))
			if err != nil {
				return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.Get", tenantID, err)
			}
			return &e, nil
		}
		return nil, mkcerr.New(mkcerr.MemoryNotFound, "memory.Get", "no such entry")

	default:
		return nil, mkcerr.New(mkcerr.InvalidLayer, "memory.Get", "unroutable backend class")
	}
}

func (m *Manager) factTombstoned(tenantID string, layer mkctypes.Layer, id string) bool {
	rows, err := m.backends.Fact.Query(factPredicate(tenantID, layer)+"_deleted", 1)
	if err != nil {
		return false
	}
	for _, row := range rows {
		if unquoteFact(row["0"]) == id {
			return true
		}
	}
	return false
}

// unquoteFact strips the Go-syntax quoting google/mangle's ast.String
// renders through Atom.String(), since the factstore adapter is a thin
// wrapper, not a typed store.
func unquoteFact(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

// Delete implements spec §6 memory delete. Per spec §9 open question
// (b), a delete of an unknown id returns success (no-op) rather than
// MemoryNotFound, matching the idempotence law in §8 ("second delete is
// a no-op success ... implementation choice, must be documented").
func (m *Manager) Delete(ctx context.Context, layer mkctypes.Layer, tenantID, id string) error {
	spec := mkctypes.LayerSpecs[layer]
	switch spec.Backend {
	case mkctypes.BackendVector:
		if err := m.backends.Vector.Delete(ctx, m.collection(layer, tenantID), id); err != nil {
			return mkcerr.Wrap(mkcerr.ProviderError, "memory.Delete", tenantID, err)
		}
		return nil
	case mkctypes.BackendOrderedDoc:
		if err := m.backends.OrderedDoc.Delete(ctx, m.router.OrderedTable(tenantID, layer), id); err != nil {
			return mkcerr.Wrap(mkcerr.ProviderError, "memory.Delete", tenantID, err)
		}
		return nil
	case mkctypes.BackendCache:
		existing, err := m.Get(ctx, layer, tenantID, id)
		m.backends.Cache.Delete(m.cacheEntryKey(layer, tenantID, id))
		if err == nil && existing != nil {
			_ = m.cacheIndexRemove(layer, tenantID, scopeValue(layer, existing.IDs), id)
		}
		return nil
	case mkctypes.BackendFact:
		if err := m.backends.Fact.RemoveFact(factPredicate(tenantID, layer), id); err != nil {
			return mkcerr.Wrap(mkcerr.ProviderError, "memory.Delete", tenantID, err)
		}
		return nil
	default:
		return mkcerr.New(mkcerr.InvalidLayer, "memory.Delete", "unroutable backend class")
	}
}

// List implements spec §6 memory list, scoped to the caller's identifiers.
func (m *Manager) List(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers, limit int) ([]mkctypes.Entry, error) {
	if err := validateIdentifiers(layer, ids); err != nil {
		return nil, err
	}
	spec := mkctypes.LayerSpecs[layer]
	scope := scopeValue(layer, ids)

	var all []mkctypes.Entry
	switch spec.Backend {
	case mkctypes.BackendVector:
		recs, err := m.backends.Vector.List(ctx, m.collection(layer, ids.Tenant))
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.List", ids.Tenant, err)
		}
		for _, r := range recs {
			if r.Payload["scope"] != scope {
				continue
			}
			e, err := decodeEntry([]byte(r.Payload["entry"]))
			if err != nil {
				continue
			}
			all = append(all, e)
		}

	case mkctypes.BackendOrderedDoc:
		docs, err := m.backends.OrderedDoc.List(ctx, m.router.OrderedTable(ids.Tenant, layer), 0)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.List", ids.Tenant, err)
		}
		for _, d := range docs {
			e, err := decodeEntry(d.Payload)
			if err != nil {
				continue
			}
			if scopeValue(layer, e.IDs) != scope {
				continue
			}
			all = append(all, e)
		}

	case mkctypes.BackendCache:
		for _, id := range m.cacheIndexRead(layer, ids.Tenant, scope) {
			raw, ok := m.backends.Cache.Get(m.cacheEntryKey(layer, ids.Tenant, id))
			if !ok {
				continue
			}
			e, err := decodeEntry(raw)
			if err != nil {
				continue
			}
			all = append(all, e)
		}

	case mkctypes.BackendFact:
		rows, err := m.backends.Fact.Query(factPredicate(ids.Tenant, layer), 2)
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.ProviderError, "memory.List", ids.Tenant, err)
		}
		for _, row := range rows {
			id := unquoteFact(row["0"])
			if m.factTombstoned(ids.Tenant, layer, id) {
				continue
			}
			e, err := decodeEntry([]byte(unquoteFact(row["1"])))
			if err != nil {
				continue
			}
			if scopeValue(layer, e.IDs) != scope {
				continue
			}
			all = append(all, e)
		}

	default:
		return nil, mkcerr.New(mkcerr.InvalidLayer, "memory.List", "unroutable backend class")
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Update implements spec §6 memory update: content replaced (and
// re-embedded iff it changed, skipped for SkipEmbedding layers),
// metadata shallow-merged, updatedAt bumped.
func (m *Manager) Update(ctx context.Context, layer mkctypes.Layer, tenantID, id string, content *string, meta *mkctypes.Metadata) error {
	existing, err := m.Get(ctx, layer, tenantID, id)
	if err != nil {
		return err
	}

	contentChanged := false
	if content != nil && *content != existing.Content {
		if err := validateContent(*content, m.cfg.MaxContentBytes); err != nil {
			return err
		}
		existing.Content = *content
		contentChanged = true
	}
	if meta != nil {
		existing.Metadata = existing.Metadata.Merge(*meta)
	}

	spec := mkctypes.LayerSpecs[layer]
	if contentChanged && !spec.SkipEmbedding {
		vec, model, err := m.embed(ctx, existing.Content, false)
		if err != nil {
			return err
		}
		existing.Vector = vec
		existing.VectorModel = model
	}
	existing.UpdatedAt = m.now()

	return m.persist(ctx, *existing)
}
