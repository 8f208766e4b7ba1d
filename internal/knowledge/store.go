package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/config"
	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider"
	"github.com/mkc-dev/mkc/internal/tenant"
)

// Store is the Knowledge Store (spec §4.2): it owns typed items, produces
// append-only commits, and maintains the manifest. One Store instance
// serves every tenant; isolation is per-repo, the repo path coming from
// the Tenant Router.
type Store struct {
	router *tenant.Router
	git    provider.GitBackend
	cfg    config.KnowledgeConfig
	log    *zap.Logger
	now    func() time.Time

	// commitMu serializes commits per (tenant, layer) — spec §5 "The
	// Knowledge Store holds an exclusive lock per (tenant, knowledge-layer)
	// during commit; readers do not block."
	commitMu sync.Map // map[string]*sync.Mutex
}

// New constructs a Store.
func New(router *tenant.Router, git provider.GitBackend, cfg config.KnowledgeConfig, log *zap.Logger) *Store {
	return &Store{router: router, git: git, cfg: cfg, log: log, now: time.Now}
}

func (s *Store) repoPath(tenantID string) string {
	return s.router.KnowledgeRepoPath(s.cfg.RepoBaseDir, tenantID)
}

func (s *Store) lockFor(tenantID string, layer mkctypes.KnowledgeLayer) *sync.Mutex {
	key := tenantID + ":" + string(layer)
	v, _ := s.commitMu.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// scanItems reads every item file tracked at HEAD for tenantID, used both
// to rebuild the manifest and to serve Query/Get/GetHistory without
// keeping a separate index — the repo tree is the source of truth.
func (s *Store) scanItems(ctx context.Context, tenantID string) ([]mkctypes.Item, error) {
	repoPath := s.repoPath(tenantID)
	if err := s.git.EnsureRepo(ctx, repoPath); err != nil {
		return nil, err
	}
	paths, err := s.git.ListFiles(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	var items []mkctypes.Item
	for _, p := range paths {
		if p == manifestPath || !strings.HasSuffix(p, ".md") {
			continue
		}
		data, err := s.git.ReadFile(ctx, repoPath, p)
		if err != nil {
			return nil, err
		}
		item, err := decodeItem(data)
		if err != nil {
			s.log.Warn("skipping unreadable knowledge item", zap.String("path", p), zap.Error(err))
			continue
		}
		item.Path = p
		item.Tenant = tenantID
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) getItem(ctx context.Context, tenantID, id string) (mkctypes.Item, error) {
	items, err := s.scanItems(ctx, tenantID)
	if err != nil {
		return mkctypes.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return mkctypes.Item{}, mkcerr.New(mkcerr.ItemNotFound, "knowledge.Get", fmt.Sprintf("item %q not found", id))
}

// commit writes item (and, for a status-quo snapshot, regenerates the
// manifest over the full current item set) in exactly one append-only
// commit (spec §4.2 "Commit protocol").
func (s *Store) commit(ctx context.Context, tenantID string, item mkctypes.Item, changeType mkctypes.ChangeType) error {
	lock := s.lockFor(tenantID, item.Layer)
	lock.Lock()
	defer lock.Unlock()

	repoPath := s.repoPath(tenantID)
	encoded, err := encodeItem(item)
	if err != nil {
		return err
	}

	files := map[string][]byte{item.Path: encoded}

	// Manifest must reflect this item's effect, so fold it into the
	// post-write item set before regenerating (spec §3 "Manifest":
	// "manifest regenerates on every commit").
	existing, err := s.scanItems(ctx, tenantID)
	if err != nil {
		return err
	}
	merged := mergeItemIntoSet(existing, item)

	manifest := buildManifest(merged, "", s.now())
	manifestData, err := encodeManifest(manifest)
	if err != nil {
		return err
	}
	files[manifestPath] = manifestData

	message := fmt.Sprintf("%s %s %s", changeType, item.Type, item.ID)
	hash, err := s.git.Commit(ctx, repoPath, files, message, s.cfg.AuthorName, s.cfg.AuthorEmail)
	if err != nil {
		return err
	}

	// Paranoid post-commit verification: re-read the file just written
	// and confirm its hash matches what we intended to persist, catching
	// silent truncation or encoding bugs before callers rely on it.
	reread, err := s.git.ReadFile(ctx, repoPath, item.Path)
	if err != nil {
		return err
	}
	rereadItem, err := decodeItem(reread)
	if err != nil {
		return mkcerr.Wrap(mkcerr.GitError, "knowledge.commit", item.ID, err)
	}
	if rereadItem.ContentHash != item.ContentHash {
		return mkcerr.New(mkcerr.GitError, "knowledge.commit", fmt.Sprintf("post-commit hash mismatch for %s", item.ID))
	}

	s.log.Info("knowledge commit",
		zap.String("tenant", tenantID), zap.String("item", item.ID),
		zap.String("change_type", string(changeType)), zap.String("commit", hash))
	return nil
}

func mergeItemIntoSet(set []mkctypes.Item, item mkctypes.Item) []mkctypes.Item {
	out := make([]mkctypes.Item, 0, len(set)+1)
	replaced := false
	for _, it := range set {
		if it.ID == item.ID {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// Propose creates a new Draft item (spec §4.2, §6 "propose").
func (s *Store) Propose(ctx context.Context, tenantID string, itemType mkctypes.ItemType, layer mkctypes.KnowledgeLayer, scopeID, title, summary, content string, severity mkctypes.Severity, constraints []mkctypes.Constraint, tags []string, supersedes string) (mkctypes.Item, error) {
	if err := s.router.ValidateTenantID(tenantID); err != nil {
		return mkctypes.Item{}, err
	}
	for _, c := range constraints {
		if !mkctypes.Legal(c.Operator, c.Target) {
			return mkctypes.Item{}, mkcerr.New(mkcerr.ConstraintSyntaxError, "knowledge.Propose",
				fmt.Sprintf("illegal (operator,target) pair %s/%s on constraint %s", c.Operator, c.Target, c.ID))
		}
	}

	id := uuid.NewString()
	path, err := itemPath(layer, scopeID, itemType, id)
	if err != nil {
		return mkctypes.Item{}, mkcerr.Wrap(mkcerr.ItemNotFound, "knowledge.Propose", tenantID, err)
	}

	now := s.now()
	item := mkctypes.Item{
		ID:          id,
		Tenant:      tenantID,
		Type:        itemType,
		Layer:       layer,
		Title:       title,
		Summary:     summary,
		Content:     content,
		ContentHash: contentHash(content),
		Status:      mkctypes.StatusDraft,
		Severity:    severity,
		Constraints: constraints,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Supersedes:  supersedes,
		Path:        path,
	}

	if err := s.commit(ctx, tenantID, item, mkctypes.ChangeCreate); err != nil {
		return mkctypes.Item{}, err
	}
	return item, nil
}

// Update mutates a Policy or Pattern item's content in place. ADR and Spec
// items are immutable and must go through Supersede (spec §3 "updates to
// ADRs and Specs are forbidden").
func (s *Store) Update(ctx context.Context, tenantID, id, content, summary string) (mkctypes.Item, error) {
	item, err := s.getItem(ctx, tenantID, id)
	if err != nil {
		return mkctypes.Item{}, err
	}
	if item.Type.Immutable() {
		return mkctypes.Item{}, mkcerr.New(mkcerr.InvalidStatusTransition, "knowledge.Update",
			fmt.Sprintf("%s items are immutable; use Supersede", item.Type))
	}

	if content != "" {
		item.Content = content
		item.ContentHash = contentHash(content)
	}
	if summary != "" {
		item.Summary = summary
	}
	item.UpdatedAt = s.now()

	if err := s.commit(ctx, tenantID, item, mkctypes.ChangeUpdate); err != nil {
		return mkctypes.Item{}, err
	}
	return item, nil
}

// Supersede creates a new Draft item with the supplied content (the old
// item's content is not copied) and marks the old item Superseded, the only
// legal path for revising an ADR or Spec (spec §3, §4.2).
func (s *Store) Supersede(ctx context.Context, tenantID, oldID, title, summary, content string, severity mkctypes.Severity, constraints []mkctypes.Constraint, tags []string) (mkctypes.Item, error) {
	old, err := s.getItem(ctx, tenantID, oldID)
	if err != nil {
		return mkctypes.Item{}, err
	}
	if old.Status != mkctypes.StatusAccepted {
		return mkctypes.Item{}, mkcerr.New(mkcerr.InvalidStatusTransition, "knowledge.Supersede",
			fmt.Sprintf("only Accepted items may be superseded, %s is %s", oldID, old.Status))
	}

	scopeID := scopeIDFromPath(old.Path)
	newItem, err := s.Propose(ctx, tenantID, old.Type, old.Layer, scopeID, title, summary, content, severity, constraints, tags, oldID)
	if err != nil {
		return mkctypes.Item{}, err
	}

	old.Status = mkctypes.StatusSuperseded
	old.SupersededBy = newItem.ID
	old.UpdatedAt = s.now()
	if err := s.commit(ctx, tenantID, old, mkctypes.ChangeSupersede); err != nil {
		return mkctypes.Item{}, err
	}
	return newItem, nil
}

// scopeIDFromPath recovers the org/team/project scope id from a stored
// item path (e.g. "projects/p1/adrs/x.md" -> "p1"); Company items have
// no scope segment.
func scopeIDFromPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) >= 2 && parts[0] != "company" {
		return parts[1]
	}
	return ""
}

// UpdateStatus transitions item's status per the automaton in §4.2. A
// non-empty reason is persisted in the item's Metadata under
// "status_reason"; the commit message does not include it.
func (s *Store) UpdateStatus(ctx context.Context, tenantID, id string, newStatus mkctypes.Status, reason string) (mkctypes.Item, error) {
	item, err := s.getItem(ctx, tenantID, id)
	if err != nil {
		return mkctypes.Item{}, err
	}
	if err := validateTransition(item.Status, newStatus); err != nil {
		return mkctypes.Item{}, err
	}

	item.Status = newStatus
	item.UpdatedAt = s.now()
	if reason != "" {
		if item.Metadata == nil {
			item.Metadata = map[string]string{}
		}
		item.Metadata["status_reason"] = reason
	}

	if err := s.commit(ctx, tenantID, item, mkctypes.ChangeStatus); err != nil {
		return mkctypes.Item{}, err
	}
	return item, nil
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, tenantID, id string) (mkctypes.Item, error) {
	return s.getItem(ctx, tenantID, id)
}

// QueryFilter narrows Query's item scan (spec §6 "query").
type QueryFilter struct {
	Type   mkctypes.ItemType
	Layer  mkctypes.KnowledgeLayer
	Tag    string
	Status mkctypes.Status
	Text   string // matched against title/summary; the vector-backed text
	// search described in spec §4.2 ("text uses the vector index on
	// summaries") is layered on top by internal/operation, which has
	// access to the Embedding Service — Store itself stays storage-only.
	Limit int
}

// Query lists items matching filter, sorted by (layer rank, id) for
// determinism.
func (s *Store) Query(ctx context.Context, tenantID string, filter QueryFilter) ([]mkctypes.Item, error) {
	items, err := s.scanItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var out []mkctypes.Item
	for _, it := range items {
		if filter.Type != "" && it.Type != filter.Type {
			continue
		}
		if filter.Layer != "" && it.Layer != filter.Layer {
			continue
		}
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !containsTag(it.Tags, filter.Tag) {
			continue
		}
		if filter.Text != "" && !strings.Contains(strings.ToLower(it.Title+" "+it.Summary), strings.ToLower(filter.Text)) {
			continue
		}
		out = append(out, it)
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Layer.Rank(), out[j].Layer.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GetHistory returns the commit log affecting tenantID's repo, newest
// first (spec §6 "get(id, {includeHistory?})" — full-repo history is
// filtered to the requested item by message content, since commits name
// their affected item id in the commit message by construction).
func (s *Store) GetHistory(ctx context.Context, tenantID, id string, limit int) ([]mkctypes.Commit, error) {
	repoPath := s.repoPath(tenantID)
	if err := s.git.EnsureRepo(ctx, repoPath); err != nil {
		return nil, err
	}
	raw, err := s.git.Log(ctx, repoPath, 0)
	if err != nil {
		return nil, err
	}

	var out []mkctypes.Commit
	var parent string
	for i := len(raw) - 1; i >= 0; i-- {
		c := raw[i]
		if id != "" && !strings.Contains(c.Message, id) {
			parent = c.Hash
			continue
		}
		out = append([]mkctypes.Commit{{
			Hash:       c.Hash,
			ParentHash: parent,
			Message:    c.Message,
		}}, out...)
		parent = c.Hash
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CommitRecord is one commit affecting a single knowledge item, as
// consumed by the Sync Bridge's "walk commits since last-synced hash"
// step (spec §4.5 "Algorithm" step 1).
type CommitRecord struct {
	Hash           string
	Message        string
	AffectedItemID string
}

// CommitsSince returns every commit after sinceHash (all commits if
// sinceHash is empty), oldest first, with the affected item id parsed
// out of each commit message (commit messages are always formed as
// "<changeType> <itemType> <itemID>" by commit()).
func (s *Store) CommitsSince(ctx context.Context, tenantID, sinceHash string) ([]CommitRecord, error) {
	repoPath := s.repoPath(tenantID)
	if err := s.git.EnsureRepo(ctx, repoPath); err != nil {
		return nil, err
	}
	raw, err := s.git.Log(ctx, repoPath, 0) // newest first
	if err != nil {
		return nil, err
	}

	var out []CommitRecord
	for _, c := range raw {
		if c.Hash == sinceHash {
			break
		}
		out = append(out, CommitRecord{
			Hash:           c.Hash,
			Message:        c.Message,
			AffectedItemID: lastToken(c.Message),
		})
	}
	// raw is newest-first; reverse so callers process oldest-to-newest.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func lastToken(message string) string {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
