package memory

import (
	"context"
	"sort"

	"github.com/mkc-dev/mkc/internal/embedding"
	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// SearchResult is one ranked hit from Search, annotated with the
// similarity score that drove ranking (1.0 for non-vector layers, whose
// backend has no notion of similarity and is included as-is).
type SearchResult struct {
	Entry      mkctypes.Entry
	Similarity float64
}

// SearchOutput is the spec §6 `search` return shape.
type SearchOutput struct {
	Results        []SearchResult
	TotalCount     int
	SearchedLayers []mkctypes.Layer
}

// Search implements spec §4.1's cross-layer retrieval and merge
// algorithm.
func (m *Manager) Search(ctx context.Context, query string, layers []mkctypes.Layer, ids mkctypes.Identifiers, limit int, threshold float64) (*SearchOutput, error) {
	if err := validateQuery(query, m.cfg.MaxQueryBytes); err != nil {
		return nil, err
	}
	if ids.Tenant == "" {
		return nil, mkcerr.New(mkcerr.MissingIdentifier, "memory.Search", "tenant is required")
	}
	if err := m.router.ValidateTenantID(ids.Tenant); err != nil {
		return nil, err
	}

	if len(layers) == 0 {
		layers = accessibleLayers(ids)
	}
	// limit < 0 means "unspecified": fall back to the configured default.
	// limit == 0 is an explicit request for zero results (still searches
	// and populates SearchedLayers, just returns nothing).
	if limit < 0 {
		limit = m.cfg.DefaultSearchLimit
	}
	if m.cfg.MaxSearchLimit > 0 && limit > m.cfg.MaxSearchLimit {
		limit = m.cfg.MaxSearchLimit
	}

	var queryVec []float32
	needsVector := false
	for _, l := range layers {
		if !mkctypes.LayerSpecs[l].SkipEmbedding {
			needsVector = true
		}
	}
	if needsVector {
		vec, _, err := m.embed(ctx, query, true)
		if err != nil {
			return nil, err
		}
		queryVec = vec
	}

	var all []SearchResult
	searched := make([]mkctypes.Layer, 0, len(layers))
	for _, layer := range layers {
		if missing := mkctypes.MissingRequired(layer, ids); len(missing) > 0 {
			continue // caller lacks the identifiers to access this layer; skip, don't fail
		}
		searched = append(searched, layer)

		entries, err := m.List(ctx, layer, ids, 0)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			sim := 1.0
			if !mkctypes.LayerSpecs[layer].SkipEmbedding && len(e.Vector) > 0 && len(queryVec) > 0 {
				s, err := embedding.CosineSimilarity(queryVec, e.Vector)
				if err != nil {
					continue // dimension mismatch (stale vector model): exclude rather than fail the whole search
				}
				sim = s
			}
			if sim < threshold {
				continue
			}
			all = append(all, SearchResult{Entry: e, Similarity: sim})
		}
	}

	merged := mergeSearchResults(all, m.cfg.DedupSimilarityThreshold)
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return &SearchOutput{Results: merged, TotalCount: len(merged), SearchedLayers: searched}, nil
}

// accessibleLayers returns every layer whose required identifiers are
// satisfied by ids, used when the caller does not name specific layers.
func accessibleLayers(ids mkctypes.Identifiers) []mkctypes.Layer {
	var out []mkctypes.Layer
	for _, l := range mkctypes.AllLayers {
		if len(mkctypes.MissingRequired(l, ids)) == 0 {
			out = append(out, l)
		}
	}
	return out
}

// mergeSearchResults implements spec §4.1's merge algorithm: sort by
// (layer rank asc, similarity desc), then dedup by content cosine
// similarity > threshold, keeping the higher-precedence (lower rank)
// survivor.
func mergeSearchResults(results []SearchResult, dedupThreshold float64) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].Entry.Layer.Rank(), results[j].Entry.Layer.Rank()
		if ri != rj {
			return ri < rj
		}
		return results[i].Similarity > results[j].Similarity
	})

	var kept []SearchResult
	for _, candidate := range results {
		duplicate := false
		for _, survivor := range kept {
			if candidate.Entry.Vector == nil || survivor.Entry.Vector == nil {
				if candidate.Entry.Content == survivor.Entry.Content {
					duplicate = true
					break
				}
				continue
			}
			sim, err := embedding.CosineSimilarity(candidate.Entry.Vector, survivor.Entry.Vector)
			if err == nil && sim > dedupThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}
