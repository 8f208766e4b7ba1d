// Package memory implements the Memory Manager (spec §4.1): identifier
// validation, per-layer routing through the Tenant Router, embedding
// dispatch, the cross-layer search merge algorithm, and the lifecycle
// hooks (decay, promotion, consolidation). Grounded on codenerd's
// LocalStore, which plays the same "one façade over several storage
// tiers" role (internal/store/local_core.go), generalized here from a
// single embedded SQLite file to the seven tenant-scoped layers.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/config"
	"github.com/mkc-dev/mkc/internal/embedding"
	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider"
	"github.com/mkc-dev/mkc/internal/tenant"
)

// Backends bundles the concrete provider adapters a Manager routes to.
// Every layer maps to exactly one of these per spec §4.1's backend
// classes; which field is used for a given layer is decided by
// mkctypes.LayerSpecs[layer].Backend.
type Backends struct {
	Vector     provider.VectorStore
	OrderedDoc provider.OrderedDocStore
	Cache      provider.Cache
	Fact       provider.FactStore
}

// Manager is the Memory Manager façade.
type Manager struct {
	router    *tenant.Router
	backends  Backends
	embedding embedding.Engine
	cfg       config.MemoryConfig
	log       *zap.Logger

	now func() time.Time
}

// New builds a Manager. engine may be nil for layers that never embed
// (SkipEmbedding layers still function without one).
func New(router *tenant.Router, backends Backends, eng embedding.Engine, cfg config.MemoryConfig, log *zap.Logger) *Manager {
	return &Manager{
		router:    router,
		backends:  backends,
		embedding: eng,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// validateIdentifiers enforces the §4.1 required-identifier matrix and
// the §3 "no datum exists without a tenant_id" invariant.
func validateIdentifiers(layer mkctypes.Layer, ids mkctypes.Identifiers) error {
	if !layer.Valid() {
		return mkcerr.New(mkcerr.InvalidLayer, "memory.validate", "unknown layer")
	}
	if ids.Tenant == "" {
		return mkcerr.New(mkcerr.MissingIdentifier, "memory.validate", "tenant is required")
	}
	if missing := mkctypes.MissingRequired(layer, ids); len(missing) > 0 {
		return mkcerr.New(mkcerr.MissingIdentifier, "memory.validate",
			"missing required identifiers: "+joinStrings(missing, ","))
	}
	return nil
}

func joinStrings(ss []string, sep string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}

// Add implements spec §6 memory add.
func (m *Manager) Add(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers, content string, meta mkctypes.Metadata) (string, error) {
	if err := validateIdentifiers(layer, ids); err != nil {
		return "", err
	}
	if err := validateContent(content, m.cfg.MaxContentBytes); err != nil {
		return "", err
	}
	if err := m.router.ValidateTenantID(ids.Tenant); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := m.now()
	entry := mkctypes.Entry{
		ID:        id,
		Content:   content,
		Layer:     layer,
		IDs:       ids,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
		State:     mkctypes.StateActive,
	}

	spec := mkctypes.LayerSpecs[layer]
	if !spec.SkipEmbedding {
		vec, model, err := m.embed(ctx, content, false)
		if err != nil {
			return "", err
		}
		entry.Vector = vec
		entry.VectorModel = model
	}

	if err := m.persist(ctx, entry); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) embed(ctx context.Context, text string, isQuery bool) ([]float32, string, error) {
	if m.embedding == nil {
		return nil, "", mkcerr.New(mkcerr.ConfigurationError, "memory.embed", "no embedding engine configured")
	}
	_ = embedding.TaskType(isQuery) // task selection is backend-specific; engines read it from their own config today
	vec, err := m.embedding.Embed(ctx, text)
	if err != nil {
		return nil, "", mkcerr.Wrap(mkcerr.EmbeddingFailed, "memory.embed", "", err)
	}
	return vec, m.embedding.Name(), nil
}

func validateContent(content string, maxBytes int) error {
	if len(content) == 0 {
		return mkcerr.New(mkcerr.ContentTooLong, "memory.validate", "content must not be empty")
	}
	if maxBytes > 0 && len(content) > maxBytes {
		return mkcerr.New(mkcerr.ContentTooLong, "memory.validate", "content exceeds maximum size")
	}
	return nil
}

func validateQuery(query string, maxBytes int) error {
	if maxBytes > 0 && len(query) > maxBytes {
		return mkcerr.New(mkcerr.QueryTooLong, "memory.validate", "query exceeds maximum size")
	}
	return nil
}
