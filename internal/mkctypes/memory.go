package mkctypes

import "time"

// EntryState is the Memory Entry lifecycle state machine (spec §4.1
// "State machine — Memory Entry"): Created -> Active <-> Updated;
// Active -> Decayed -> Archived -> Deleted.
type EntryState string

const (
	StateActive   EntryState = "active"
	StateDecayed  EntryState = "decayed"
	StateArchived EntryState = "archived"
	StateDeleted  EntryState = "deleted"
)

// Source describes where a memory entry's content originated.
type Source struct {
	Type string // e.g. "conversation", "pointer", "tool_result"
	ID   string
}

// KnowledgePointer is the §3 "Pointer" subtype of memory metadata: a
// memory entry that mirrors a knowledge item.
type KnowledgePointer struct {
	SourceType    string // always "knowledge_item" today, kept for extensibility
	SourceID      string
	HashAtSync    string
	SyncedAt      time.Time
	Orphan        bool
	Stale         bool
}

// Metadata is the free-form, shallow-mergeable bag carried by a memory
// entry (spec §3 "Memory Entry").
type Metadata struct {
	Tags    []string
	Source  *Source
	Pointer *KnowledgePointer
	Custom  map[string]string
}

// Merge shallow-merges other into m: top-level keys in other replace m's,
// Tags/Custom are replaced wholesale (not unioned) per the "metadata is
// shallow-merged" invariant in spec §4.1 Update.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m
	if other.Tags != nil {
		out.Tags = other.Tags
	}
	if other.Source != nil {
		out.Source = other.Source
	}
	if other.Pointer != nil {
		out.Pointer = other.Pointer
	}
	if other.Custom != nil {
		out.Custom = other.Custom
	}
	return out
}

// Entry is the §3 "Memory Entry".
type Entry struct {
	ID          string
	Content     string
	Vector      []float32
	VectorModel string // embedding model id the vector was produced against
	Truncated   bool   // true if Vector is a truncated prefix (variable-dimension)
	Layer       Layer
	IDs         Identifiers
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DecayScore  *float64
	Confidence  *float64
	State       EntryState
}
