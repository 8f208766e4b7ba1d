package mkctypes

import "time"

// ItemType is a knowledge item's type (spec §3 "Knowledge Item").
type ItemType string

const (
	ItemADR     ItemType = "ADR"
	ItemPolicy  ItemType = "Policy"
	ItemPattern ItemType = "Pattern"
	ItemSpec    ItemType = "Spec"
)

// KnowledgeLayer is the subset of memory layers that knowledge items live
// in (spec §3: "layer ∈ {Company, Org, Team, Project}").
type KnowledgeLayer string

const (
	KLCompany KnowledgeLayer = "Company"
	KLOrg     KnowledgeLayer = "Org"
	KLTeam    KnowledgeLayer = "Team"
	KLProject KnowledgeLayer = "Project"
)

// Rank gives federation override precedence: Project overrides Team
// overrides Org overrides Company (spec §4.2 "Federation").
func (l KnowledgeLayer) Rank() int {
	switch l {
	case KLProject:
		return 0
	case KLTeam:
		return 1
	case KLOrg:
		return 2
	case KLCompany:
		return 3
	default:
		return -1
	}
}

// Status is the knowledge item status lifecycle (spec §3, §4.2).
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusProposed    Status = "Proposed"
	StatusAccepted    Status = "Accepted"
	StatusDeprecated  Status = "Deprecated"
	StatusSuperseded  Status = "Superseded"
	StatusRejected    Status = "Rejected"
)

// Severity is shared by knowledge items (default severity) and
// constraints (spec §3).
type Severity string

const (
	SeverityInfo  Severity = "Info"
	SeverityWarn  Severity = "Warn"
	SeverityBlock Severity = "Block"
)

// severityRank orders severities for minSeverity filtering: Block > Warn > Info.
func (s Severity) rank() int {
	switch s {
	case SeverityBlock:
		return 2
	case SeverityWarn:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Item is the §3 "Knowledge Item".
type Item struct {
	ID            string
	Tenant        string
	Type          ItemType
	Layer         KnowledgeLayer
	Title         string
	Summary       string
	Content       string
	ContentHash   string // SHA-256 over Content only
	Status        Status
	Severity      Severity
	Constraints   []Constraint
	Tags          []string
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Supersedes    string
	SupersededBy  string
	Version       string // Specs only
	Path          string // on-disk path, set once proposed
}

// Immutable reports whether the item type may only be superseded, never
// updated in place (spec §3 "Knowledge Item" invariant).
func (t ItemType) Immutable() bool {
	return t == ItemADR || t == ItemSpec
}

// ChangeType is the kind of effect a knowledge commit records (spec §3
// "Knowledge Commit").
type ChangeType string

const (
	ChangeCreate     ChangeType = "Create"
	ChangeUpdate     ChangeType = "Update"
	ChangeDelete     ChangeType = "Delete"
	ChangeSupersede  ChangeType = "Supersede"
	ChangeStatus     ChangeType = "Status"
	ChangeFederation ChangeType = "Federation"
)

// Commit is the §3 "Knowledge Commit".
type Commit struct {
	Hash           string
	ParentHash     string // empty on first commit
	Timestamp      time.Time
	Author         string
	Message        string
	ChangeType     ChangeType
	AffectedItems  []string
	ManifestRef    string // manifest generation timestamp/hash this commit produced
}

// ManifestEntry is a single row of the §3 "Manifest".
type ManifestEntry struct {
	ID                string
	Type              ItemType
	Layer             KnowledgeLayer
	Path              string
	Title             string
	Summary           string
	Status            Status
	ContentHash       string
	Tags              []string
	ConstraintCounts  map[Severity]int
	UpdatedAt         time.Time
}

// Manifest is the §3 "Manifest".
type Manifest struct {
	Version     string
	GeneratedAt time.Time
	CommitHash  string
	Entries     map[string]ManifestEntry
	ByLayer     map[KnowledgeLayer][]string
	ByType      map[ItemType][]string
	ByStatus    map[Status][]string
}

// NewManifest builds an empty manifest shell with initialized index maps.
func NewManifest() *Manifest {
	return &Manifest{
		Entries:  make(map[string]ManifestEntry),
		ByLayer:  make(map[KnowledgeLayer][]string),
		ByType:   make(map[ItemType][]string),
		ByStatus: make(map[Status][]string),
	}
}
