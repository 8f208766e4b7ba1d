package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mkc-dev/mkc/internal/embedding"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// Decay implements spec §4.1's decay hook: score = initial ×
// (1−rate)^days; entries below the archive threshold move to Archived.
// Layers with SkipEmbedding (no notion of relevance decay over
// similarity) are exempt, mirroring the spec's "Layers may be exempt."
func (m *Manager) Decay(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers) (int, error) {
	spec := mkctypes.LayerSpecs[layer]
	if spec.SkipEmbedding {
		return 0, nil
	}

	entries, err := m.List(ctx, layer, ids, 0)
	if err != nil {
		return 0, err
	}

	now := m.now()
	archived := 0
	for _, e := range entries {
		if e.State == mkctypes.StateArchived || e.State == mkctypes.StateDeleted {
			continue
		}
		initial := 1.0
		if e.DecayScore != nil {
			initial = *e.DecayScore
		}
		days := now.Sub(e.CreatedAt).Hours() / 24
		score := initial * math.Pow(1-m.cfg.DecayRatePerDay, days)
		e.DecayScore = &score

		if score < m.cfg.DecayArchiveThreshold {
			e.State = mkctypes.StateArchived
			archived++
		} else {
			e.State = mkctypes.StateDecayed
		}
		if err := m.persist(ctx, e); err != nil {
			return archived, err
		}
	}
	return archived, nil
}

// PromotionCandidate summarizes the evidence behind a Promote decision:
// how many distinct sessions/users/teams have retrieved the same
// content, used to drive the monotonic-in-occurrence-count rule from
// spec §4.1 (exact thresholds are left to config per §9 open question a).
type PromotionCandidate struct {
	Entry          mkctypes.Entry
	DistinctScopes int
	MinConfidence  float64
}

// Promote moves a candidate entry to the caller-supplied targetLayer and
// targetIDs once candidate.DistinctScopes reaches minOccurrences,
// re-persisting it there and deleting the original. The caller picks the
// target layer; Promote does not check that it is the layer directly
// above the entry's current one.
func (m *Manager) Promote(ctx context.Context, candidate PromotionCandidate, minOccurrences int, targetLayer mkctypes.Layer, targetIDs mkctypes.Identifiers) error {
	if candidate.DistinctScopes < minOccurrences {
		return nil
	}

	promoted := candidate.Entry
	promoted.Layer = targetLayer
	promoted.IDs = targetIDs
	promoted.UpdatedAt = m.now()

	spec := mkctypes.LayerSpecs[targetLayer]
	if !spec.SkipEmbedding && len(promoted.Vector) == 0 {
		vec, model, err := m.embed(ctx, promoted.Content, false)
		if err != nil {
			return err
		}
		promoted.Vector = vec
		promoted.VectorModel = model
	}

	if err := m.persist(ctx, promoted); err != nil {
		return err
	}
	return m.Delete(ctx, candidate.Entry.Layer, candidate.Entry.IDs.Tenant, candidate.Entry.ID)
}

// Consolidate implements spec §4.1's consolidation hook: when a layer's
// population exceeds cap, entries more similar than threshold are merged
// into one compound entry (concatenated salient content, unioned tags,
// highest confidence kept), replacing the originals atomically from the
// caller's perspective (the originals are deleted only after the
// compound entry is durably persisted).
func (m *Manager) Consolidate(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers) (int, error) {
	entries, err := m.List(ctx, layer, ids, 0)
	if err != nil {
		return 0, err
	}
	if len(entries) <= m.cfg.ConsolidationCap {
		return 0, nil
	}

	groups := groupSimilar(entries, m.cfg.ConsolidationSimThreshold)
	merged := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		compound := mergeEntries(group, m.now)
		if err := m.persist(ctx, compound); err != nil {
			return merged, err
		}
		for _, e := range group {
			if e.ID == compound.ID {
				continue
			}
			if err := m.Delete(ctx, layer, ids.Tenant, e.ID); err != nil {
				return merged, err
			}
		}
		merged++
	}
	return merged, nil
}

func groupSimilar(entries []mkctypes.Entry, threshold float64) [][]mkctypes.Entry {
	used := make([]bool, len(entries))
	var groups [][]mkctypes.Entry
	for i := range entries {
		if used[i] {
			continue
		}
		group := []mkctypes.Entry{entries[i]}
		used[i] = true
		for j := i + 1; j < len(entries); j++ {
			if used[j] || len(entries[i].Vector) == 0 || len(entries[j].Vector) == 0 {
				continue
			}
			sim, err := embedding.CosineSimilarity(entries[i].Vector, entries[j].Vector)
			if err == nil && sim > threshold {
				group = append(group, entries[j])
				used[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// mergeEntries collapses group into one compound entry, keeping the
// first (lowest created-at) entry's identity so callers already holding
// that id keep resolving.
func mergeEntries(group []mkctypes.Entry, now func() time.Time) mkctypes.Entry {
	sort.Slice(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })

	base := group[0]
	content := base.Content
	tagSet := map[string]bool{}
	for _, t := range base.Metadata.Tags {
		tagSet[t] = true
	}
	bestConfidence := base.Confidence

	for _, e := range group[1:] {
		content += "\n" + e.Content
		for _, t := range e.Metadata.Tags {
			tagSet[t] = true
		}
		if e.Confidence != nil && (bestConfidence == nil || *e.Confidence > *bestConfidence) {
			bestConfidence = e.Confidence
		}
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	base.Content = content
	base.Metadata.Tags = tags
	base.Confidence = bestConfidence
	base.UpdatedAt = now()
	return base
}
