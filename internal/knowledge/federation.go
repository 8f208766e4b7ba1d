package knowledge

import (
	"context"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// FederationResult summarizes one Federate call's effect.
type FederationResult struct {
	Created   []string
	FastForwarded []string
	Conflicts []string
	Superseded []string
	Unchanged int
}

// FederationSource names an upstream repo to pull knowledge items from;
// RepoPath is a path the Store's GitBackend can EnsureRepo/read,
// standing in for spec §4.2's "upstream repo URL" (remote transport is
// out of scope per the ambient stack's wire-format exclusion — the
// upstream is whatever local path the caller has already synced there).
type FederationSource struct {
	RepoPath string
	Tenant   string
}

// Federate implements spec §4.2 "Federation": it pulls the upstream
// item set restricted to layers, diffs by id against local, and applies
// create/no-op/conflict/fast-forward/delete-supersede per item.
//
// Layer precedence (Project overrides Team overrides Org overrides
// Company for items sharing an id) is NOT enforced here by mutation —
// per spec, overrides are "implemented by suppressing the lower-
// precedence item in queries, not by mutating it", which Query already
// does by sorting on Layer.Rank() and a caller taking the first hit per
// id; Federate only ever creates/updates the item at its OWN layer.
func (s *Store) Federate(ctx context.Context, tenantID string, source FederationSource, layers []mkctypes.KnowledgeLayer, lastFederatedHashes map[string]string) (*FederationResult, error) {
	if err := s.router.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	if err := s.git.EnsureRepo(ctx, source.RepoPath); err != nil {
		return nil, err
	}
	upstreamItems, err := s.scanItemsAt(ctx, source.RepoPath, source.Tenant)
	if err != nil {
		return nil, err
	}

	layerSet := map[mkctypes.KnowledgeLayer]bool{}
	for _, l := range layers {
		layerSet[l] = true
	}

	localItems, err := s.scanItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	localByID := make(map[string]mkctypes.Item, len(localItems))
	for _, it := range localItems {
		localByID[it.ID] = it
	}

	result := &FederationResult{}
	for _, up := range upstreamItems {
		if !layerSet[up.Layer] {
			continue
		}
		local, exists := localByID[up.ID]

		switch {
		case !exists:
			if err := s.adoptItem(ctx, tenantID, up); err != nil {
				return result, err
			}
			result.Created = append(result.Created, up.ID)

		case local.ContentHash == up.ContentHash:
			result.Unchanged++

		default:
			lastHash, everFederated := lastFederatedHashes[up.ID]
			localChangedSinceLastFederation := everFederated && local.ContentHash != lastHash
			upstreamChangedSinceLastFederation := everFederated && up.ContentHash != lastHash

			if everFederated && localChangedSinceLastFederation && upstreamChangedSinceLastFederation {
				result.Conflicts = append(result.Conflicts, up.ID)
				continue
			}
			if localChangedSinceLastFederation && !upstreamChangedSinceLastFederation {
				// local side is the one that changed; nothing to do.
				result.Unchanged++
				continue
			}
			if err := s.adoptItem(ctx, tenantID, up); err != nil {
				return result, err
			}
			result.FastForwarded = append(result.FastForwarded, up.ID)
		}
	}

	// Deleted upstream: a local item whose layer is federated but which no
	// longer appears upstream is marked Superseded with reason
	// upstream-deleted (spec §4.2 "Deleted upstream").
	upstreamIDs := map[string]bool{}
	for _, up := range upstreamItems {
		upstreamIDs[up.ID] = true
	}
	for _, local := range localItems {
		if !layerSet[local.Layer] || local.Status != mkctypes.StatusAccepted {
			continue
		}
		if _, stillUpstream := upstreamIDs[local.ID]; stillUpstream {
			continue
		}
		if _, everFederated := lastFederatedHashes[local.ID]; !everFederated {
			continue
		}
		if _, err := s.UpdateStatus(ctx, tenantID, local.ID, mkctypes.StatusSuperseded, "upstream-deleted"); err != nil {
			return result, err
		}
		result.Superseded = append(result.Superseded, local.ID)
	}

	return result, nil
}

// adoptItem writes up's content under tenantID at up's own path, creating
// or overwriting the local copy verbatim (content hash carries forward
// unchanged, matching "present locally with different hash -> ...
// fast-forward the unchanged side").
func (s *Store) adoptItem(ctx context.Context, tenantID string, up mkctypes.Item) error {
	adopted := up
	adopted.Tenant = tenantID
	adopted.UpdatedAt = s.now()
	return s.commit(ctx, tenantID, adopted, mkctypes.ChangeFederation)
}

// scanItemsAt is scanItems but against an explicit repo path rather than
// one derived from the router, used to read an upstream repo.
func (s *Store) scanItemsAt(ctx context.Context, repoPath, tenantID string) ([]mkctypes.Item, error) {
	paths, err := s.git.ListFiles(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	var items []mkctypes.Item
	for _, p := range paths {
		if p == manifestPath {
			continue
		}
		data, err := s.git.ReadFile(ctx, repoPath, p)
		if err != nil {
			return nil, err
		}
		item, err := decodeItem(data)
		if err != nil {
			continue
		}
		item.Path = p
		item.Tenant = tenantID
		items = append(items, item)
	}
	return items, nil
}
