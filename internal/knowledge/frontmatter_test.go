package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestEncodeDecodeItemRoundTrip(t *testing.T) {
	item := mkctypes.Item{
		ID:          "item-1",
		Type:        mkctypes.ItemPolicy,
		Layer:       mkctypes.KLTeam,
		Title:       "title",
		Summary:     "summary",
		Content:     "line one\nline two",
		ContentHash: contentHash("line one\nline two"),
		Status:      mkctypes.StatusDraft,
		Severity:    mkctypes.SeverityWarn,
		Tags:        []string{"a", "b"},
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Constraints: []mkctypes.Constraint{
			{ID: "c1", Operator: mkctypes.MustUse, Target: mkctypes.TargetDependency, Pattern: "go.uber.org/zap", Severity: mkctypes.SeverityBlock},
		},
	}

	encoded, err := encodeItem(item)
	require.NoError(t, err)

	decoded, err := decodeItem(encoded)
	require.NoError(t, err)
	assert.Equal(t, item.ID, decoded.ID)
	assert.Equal(t, item.Content, decoded.Content)
	assert.Equal(t, item.ContentHash, decoded.ContentHash)
	require.Len(t, decoded.Constraints, 1)
	assert.Equal(t, mkctypes.MustUse, decoded.Constraints[0].Operator)
}

func TestContentHashExcludesFrontmatter(t *testing.T) {
	itemA := mkctypes.Item{ID: "a", Title: "Title A", Content: "shared body"}
	itemB := mkctypes.Item{ID: "b", Title: "Title B", Content: "shared body"}
	itemA.ContentHash = contentHash(itemA.Content)
	itemB.ContentHash = contentHash(itemB.Content)
	assert.Equal(t, itemA.ContentHash, itemB.ContentHash)
}

func TestItemPathByLayer(t *testing.T) {
	p, err := itemPath(mkctypes.KLProject, "p1", mkctypes.ItemADR, "x")
	require.NoError(t, err)
	assert.Equal(t, "projects/p1/adrs/x.md", p)

	p, err = itemPath(mkctypes.KLCompany, "", mkctypes.ItemSpec, "y")
	require.NoError(t, err)
	assert.Equal(t, "company/specs/y.md", p)
}
