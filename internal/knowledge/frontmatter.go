// Package knowledge implements the Knowledge Store (spec §4.2): typed,
// Git-backed items with an append-only commit history, a regenerated
// manifest, and federation across layers.
package knowledge

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

const frontmatterDelim = "---"

// frontmatter is the YAML block serialized at the top of every item's
// Markdown file (spec §6 "one Markdown file per item with YAML
// frontmatter carrying all structured fields").
type frontmatter struct {
	ID           string            `yaml:"id"`
	Type         mkctypes.ItemType `yaml:"type"`
	Layer        mkctypes.KnowledgeLayer `yaml:"layer"`
	Title        string            `yaml:"title"`
	Summary      string            `yaml:"summary"`
	ContentHash  string            `yaml:"content_hash"`
	Status       mkctypes.Status   `yaml:"status"`
	Severity     mkctypes.Severity `yaml:"severity"`
	Tags         []string          `yaml:"tags,omitempty"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`
	CreatedAt    int64             `yaml:"created_at"`
	UpdatedAt    int64             `yaml:"updated_at"`
	Supersedes   string            `yaml:"supersedes,omitempty"`
	SupersededBy string            `yaml:"superseded_by,omitempty"`
	Version      string            `yaml:"version,omitempty"`
	Constraints  []constraintYAML  `yaml:"constraints,omitempty"`
}

// constraintYAML is the on-disk shape of mkctypes.Constraint — the DSL
// source the Constraint Engine compiles (spec §4.3 "parsed from a
// YAML-like frontmatter block").
type constraintYAML struct {
	ID        string   `yaml:"id"`
	Operator  string   `yaml:"operator"`
	Target    string   `yaml:"target"`
	Pattern   string   `yaml:"pattern"`
	AppliesTo []string `yaml:"applies_to,omitempty"`
	Severity  string   `yaml:"severity"`
	Message   string   `yaml:"message,omitempty"`
}

func toConstraintYAML(c mkctypes.Constraint) constraintYAML {
	return constraintYAML{
		ID:        c.ID,
		Operator:  string(c.Operator),
		Target:    string(c.Target),
		Pattern:   c.Pattern,
		AppliesTo: c.AppliesTo,
		Severity:  string(c.Severity),
		Message:   c.Message,
	}
}

func (c constraintYAML) toConstraint() mkctypes.Constraint {
	return mkctypes.Constraint{
		ID:        c.ID,
		Operator:  mkctypes.Operator(c.Operator),
		Target:    mkctypes.Target(c.Target),
		Pattern:   c.Pattern,
		AppliesTo: c.AppliesTo,
		Severity:  mkctypes.Severity(c.Severity),
		Message:   c.Message,
	}
}

// contentHash computes spec §6's "SHA-256 over canonical UTF-8 of the
// content field only (frontmatter excluded)".
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// encodeItem renders an Item as a frontmatter+Markdown file.
func encodeItem(item mkctypes.Item) ([]byte, error) {
	fm := frontmatter{
		ID:           item.ID,
		Type:         item.Type,
		Layer:        item.Layer,
		Title:        item.Title,
		Summary:      item.Summary,
		ContentHash:  item.ContentHash,
		Status:       item.Status,
		Severity:     item.Severity,
		Tags:         item.Tags,
		Metadata:     item.Metadata,
		CreatedAt:    item.CreatedAt.UnixMilli(),
		UpdatedAt:    item.UpdatedAt.UnixMilli(),
		Supersedes:   item.Supersedes,
		SupersededBy: item.SupersededBy,
		Version:      item.Version,
	}
	for _, c := range item.Constraints {
		fm.Constraints = append(fm.Constraints, toConstraintYAML(c))
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "knowledge.encodeItem", item.ID, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	buf.Write(header)
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	buf.WriteString(item.Content)
	return buf.Bytes(), nil
}

// decodeItem parses a frontmatter+Markdown file back into an Item (hash
// and status are taken as recorded; callers that need to re-verify the
// hash against content call contentHash(item.Content) themselves).
func decodeItem(data []byte) (mkctypes.Item, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim) {
		return mkctypes.Item{}, mkcerr.New(mkcerr.GitError, "knowledge.decodeItem", "missing frontmatter delimiter")
	}
	rest := text[len(frontmatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		return mkctypes.Item{}, mkcerr.New(mkcerr.GitError, "knowledge.decodeItem", "unterminated frontmatter block")
	}
	header := rest[:end]
	body := rest[end+len(frontmatterDelim)+2:]

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return mkctypes.Item{}, mkcerr.Wrap(mkcerr.GitError, "knowledge.decodeItem", "", err)
	}

	item := mkctypes.Item{
		ID:           fm.ID,
		Type:         fm.Type,
		Layer:        fm.Layer,
		Title:        fm.Title,
		Summary:      fm.Summary,
		Content:      body,
		ContentHash:  fm.ContentHash,
		Status:       fm.Status,
		Severity:     fm.Severity,
		Tags:         fm.Tags,
		Metadata:     fm.Metadata,
		CreatedAt:    millisToTime(fm.CreatedAt),
		UpdatedAt:    millisToTime(fm.UpdatedAt),
		Supersedes:   fm.Supersedes,
		SupersededBy: fm.SupersededBy,
		Version:      fm.Version,
	}
	for _, c := range fm.Constraints {
		item.Constraints = append(item.Constraints, c.toConstraint())
	}
	return item, nil
}

// itemTypeDir maps an item type to its on-disk subdirectory (spec §6
// "each containing adrs/, policies/, patterns/, specs/").
func itemTypeDir(t mkctypes.ItemType) string {
	switch t {
	case mkctypes.ItemADR:
		return "adrs"
	case mkctypes.ItemPolicy:
		return "policies"
	case mkctypes.ItemPattern:
		return "patterns"
	case mkctypes.ItemSpec:
		return "specs"
	default:
		return "items"
	}
}

// layerDir maps a knowledge layer to its on-disk root (spec §6:
// "company/, orgs/{orgId}/, teams/{teamId}/, projects/{projectId}/").
// scopeID is the org/team/project id; it is ignored for Company.
func layerDir(layer mkctypes.KnowledgeLayer, scopeID string) (string, error) {
	switch layer {
	case mkctypes.KLCompany:
		return "company", nil
	case mkctypes.KLOrg:
		if scopeID == "" {
			return "", fmt.Errorf("org layer requires a scope id")
		}
		return fmt.Sprintf("orgs/%s", scopeID), nil
	case mkctypes.KLTeam:
		if scopeID == "" {
			return "", fmt.Errorf("team layer requires a scope id")
		}
		return fmt.Sprintf("teams/%s", scopeID), nil
	case mkctypes.KLProject:
		if scopeID == "" {
			return "", fmt.Errorf("project layer requires a scope id")
		}
		return fmt.Sprintf("projects/%s", scopeID), nil
	default:
		return "", fmt.Errorf("unknown knowledge layer %q", layer)
	}
}

// itemPath builds the item's repo-relative path.
func itemPath(layer mkctypes.KnowledgeLayer, scopeID string, t mkctypes.ItemType, id string) (string, error) {
	dir, err := layerDir(layer, scopeID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s.md", dir, itemTypeDir(t), id), nil
}
