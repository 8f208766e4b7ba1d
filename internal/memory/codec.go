package memory

import (
	"encoding/json"
	"time"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// envelope is the JSON-serializable projection of mkctypes.Entry stored
// by every backend. The vector travels separately in vector-backed
// collections (provider.VectorRecord.Vector) but is duplicated here too
// so cache/fact/ordered-doc backends, which have no dedicated vector
// column, can still round-trip a full Entry.
type envelope struct {
	ID          string               `json:"id"`
	Content     string               `json:"content"`
	Vector      []float32            `json:"vector,omitempty"`
	VectorModel string               `json:"vector_model,omitempty"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Layer       mkctypes.Layer       `json:"layer"`
	IDs         mkctypes.Identifiers `json:"ids"`
	Metadata    mkctypes.Metadata    `json:"metadata"`
	CreatedAt   int64                `json:"created_at"`
	UpdatedAt   int64                `json:"updated_at"`
	DecayScore  *float64             `json:"decay_score,omitempty"`
	Confidence  *float64             `json:"confidence,omitempty"`
	State       mkctypes.EntryState  `json:"state"`
}

func toEnvelope(e mkctypes.Entry) envelope {
	return envelope{
		ID:          e.ID,
		Content:     e.Content,
		Vector:      e.Vector,
		VectorModel: e.VectorModel,
		Truncated:   e.Truncated,
		Layer:       e.Layer,
		IDs:         e.IDs,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt.UnixMilli(),
		UpdatedAt:   e.UpdatedAt.UnixMilli(),
		DecayScore:  e.DecayScore,
		Confidence:  e.Confidence,
		State:       e.State,
	}
}

func (env envelope) toEntry() mkctypes.Entry {
	return mkctypes.Entry{
		ID:          env.ID,
		Content:     env.Content,
		Vector:      env.Vector,
		VectorModel: env.VectorModel,
		Truncated:   env.Truncated,
		Layer:       env.Layer,
		IDs:         env.IDs,
		Metadata:    env.Metadata,
		CreatedAt:   millisToTime(env.CreatedAt),
		UpdatedAt:   millisToTime(env.UpdatedAt),
		DecayScore:  env.DecayScore,
		Confidence:  env.Confidence,
		State:       env.State,
	}
}

func encodeEntry(e mkctypes.Entry) ([]byte, error) {
	return json.Marshal(toEnvelope(e))
}

func decodeEntry(data []byte) (mkctypes.Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return mkctypes.Entry{}, err
	}
	return env.toEntry(), nil
}
