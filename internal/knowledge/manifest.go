package knowledge

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

const manifestPath = "manifest.json"

// manifestFile is the JSON-serializable projection of mkctypes.Manifest
// persisted at manifest.json (spec §6 "manifest.json at repo root").
type manifestFile struct {
	Version     string                                 `json:"version"`
	GeneratedAt int64                                   `json:"generated_at"`
	CommitHash  string                                  `json:"commit_hash"`
	Entries     map[string]manifestEntryFile            `json:"entries"`
	ByLayer     map[mkctypes.KnowledgeLayer][]string     `json:"by_layer"`
	ByType      map[mkctypes.ItemType][]string           `json:"by_type"`
	ByStatus    map[mkctypes.Status][]string             `json:"by_status"`
}

type manifestEntryFile struct {
	ID               string                    `json:"id"`
	Type             mkctypes.ItemType         `json:"type"`
	Layer            mkctypes.KnowledgeLayer   `json:"layer"`
	Path             string                    `json:"path"`
	Title            string                    `json:"title"`
	Summary          string                    `json:"summary"`
	Status           mkctypes.Status           `json:"status"`
	ContentHash      string                    `json:"content_hash"`
	Tags             []string                  `json:"tags,omitempty"`
	ConstraintCounts map[mkctypes.Severity]int `json:"constraint_counts,omitempty"`
	UpdatedAt        int64                     `json:"updated_at"`
}

// buildManifest regenerates the full manifest by scanning the given items
// (spec §4.2 "Manifest": "Rebuilt on each commit by scanning item files").
func buildManifest(items []mkctypes.Item, commitHash string, now time.Time) *mkctypes.Manifest {
	m := mkctypes.NewManifest()
	m.Version = "1"
	m.GeneratedAt = now
	m.CommitHash = commitHash

	sorted := append([]mkctypes.Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, item := range sorted {
		counts := map[mkctypes.Severity]int{}
		for _, c := range item.Constraints {
			counts[c.Severity]++
		}
		m.Entries[item.ID] = mkctypes.ManifestEntry{
			ID:               item.ID,
			Type:             item.Type,
			Layer:            item.Layer,
			Path:             item.Path,
			Title:            item.Title,
			Summary:          item.Summary,
			Status:           item.Status,
			ContentHash:      item.ContentHash,
			Tags:             item.Tags,
			ConstraintCounts: counts,
			UpdatedAt:        item.UpdatedAt,
		}
		m.ByLayer[item.Layer] = append(m.ByLayer[item.Layer], item.ID)
		m.ByType[item.Type] = append(m.ByType[item.Type], item.ID)
		m.ByStatus[item.Status] = append(m.ByStatus[item.Status], item.ID)
	}
	for layer := range m.ByLayer {
		sort.Strings(m.ByLayer[layer])
	}
	for t := range m.ByType {
		sort.Strings(m.ByType[t])
	}
	for s := range m.ByStatus {
		sort.Strings(m.ByStatus[s])
	}
	return m
}

func encodeManifest(m *mkctypes.Manifest) ([]byte, error) {
	mf := manifestFile{
		Version:     m.Version,
		GeneratedAt: m.GeneratedAt.UnixMilli(),
		CommitHash:  m.CommitHash,
		Entries:     make(map[string]manifestEntryFile, len(m.Entries)),
		ByLayer:     m.ByLayer,
		ByType:      m.ByType,
		ByStatus:    m.ByStatus,
	}
	for id, e := range m.Entries {
		mf.Entries[id] = manifestEntryFile{
			ID:               e.ID,
			Type:             e.Type,
			Layer:            e.Layer,
			Path:             e.Path,
			Title:            e.Title,
			Summary:          e.Summary,
			Status:           e.Status,
			ContentHash:      e.ContentHash,
			Tags:             e.Tags,
			ConstraintCounts: e.ConstraintCounts,
			UpdatedAt:        e.UpdatedAt.UnixMilli(),
		}
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "knowledge.encodeManifest", "", err)
	}
	return data, nil
}

func decodeManifest(data []byte) (*mkctypes.Manifest, error) {
	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "knowledge.decodeManifest", "", err)
	}
	m := mkctypes.NewManifest()
	m.Version = mf.Version
	m.GeneratedAt = millisToTime(mf.GeneratedAt)
	m.CommitHash = mf.CommitHash
	m.ByLayer = mf.ByLayer
	m.ByType = mf.ByType
	m.ByStatus = mf.ByStatus
	if m.ByLayer == nil {
		m.ByLayer = map[mkctypes.KnowledgeLayer][]string{}
	}
	if m.ByType == nil {
		m.ByType = map[mkctypes.ItemType][]string{}
	}
	if m.ByStatus == nil {
		m.ByStatus = map[mkctypes.Status][]string{}
	}
	for id, e := range mf.Entries {
		m.Entries[id] = mkctypes.ManifestEntry{
			ID:               e.ID,
			Type:             e.Type,
			Layer:            e.Layer,
			Path:             e.Path,
			Title:            e.Title,
			Summary:          e.Summary,
			Status:           e.Status,
			ContentHash:      e.ContentHash,
			Tags:             e.Tags,
			ConstraintCounts: e.ConstraintCounts,
			UpdatedAt:        millisToTime(e.UpdatedAt),
		}
	}
	return m, nil
}
