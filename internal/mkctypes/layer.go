// Package mkctypes holds the shared data model (spec §3): memory entries,
// layers, knowledge items, commits, manifests, pointers, constraints, and
// tenant context. Kept dependency-free so every other MKC package can
// import it without cycles, the way codenerd's internal/types anchors the
// rest of the kernel.
package mkctypes

// Layer is one of the seven memory layers, named in increasing scope
// (spec §3 "Memory Layer").
type Layer string

const (
	LayerAgent   Layer = "agent"
	LayerUser    Layer = "user"
	LayerSession Layer = "session"
	LayerProject Layer = "project"
	LayerTeam    Layer = "team"
	LayerOrg     Layer = "org"
	LayerCompany Layer = "company"
)

// Rank gives the precedence order used by the search-merge algorithm:
// lower rank wins ties (Agent < User < Session < Project < Team < Org <
// Company).
func (l Layer) Rank() int {
	switch l {
	case LayerAgent:
		return 0
	case LayerUser:
		return 1
	case LayerSession:
		return 2
	case LayerProject:
		return 3
	case LayerTeam:
		return 4
	case LayerOrg:
		return 5
	case LayerCompany:
		return 6
	default:
		return -1
	}
}

// Valid reports whether l is one of the seven known layers.
func (l Layer) Valid() bool {
	return l.Rank() >= 0
}

// AllLayers lists the seven layers in precedence order, most-specific
// first.
var AllLayers = []Layer{
	LayerAgent, LayerUser, LayerSession, LayerProject, LayerTeam, LayerOrg, LayerCompany,
}

// BackendClass names the storage backend family a layer is routed to
// (spec §4.1 "Backends per layer").
type BackendClass string

const (
	BackendCache      BackendClass = "cache"
	BackendOrderedDoc BackendClass = "ordered_doc"
	BackendVector     BackendClass = "vector"
	BackendFact       BackendClass = "fact"
)

// Durability records whether a layer's backend survives process restart.
type Durability string

const (
	DurabilityVolatile   Durability = "volatile"
	DurabilityPersistent Durability = "persistent"
)

// LayerSpec is the static contract for a single memory layer (spec §3,
// §4.1): which identifiers it requires, which backend class it targets,
// and its latency/durability/TTL budget.
type LayerSpec struct {
	Layer             Layer
	RequiredIDs       []string // subset of {agent,user,session,project,team,org,company}, tenant always implied
	Backend           BackendClass
	Durability        Durability
	LatencyBudgetP95  string // documented, not enforced in-process
	DefaultTTL        string // empty = no TTL
	SkipEmbedding     bool   // Procedural layer does not carry vectors
}

// LayerSpecs is the required-identifier matrix from spec §4.1, keyed by
// layer.
var LayerSpecs = map[Layer]LayerSpec{
	LayerAgent: {
		Layer: LayerAgent, RequiredIDs: []string{"agent", "user"},
		Backend: BackendCache, Durability: DurabilityVolatile, LatencyBudgetP95: "sub-ms",
	},
	LayerUser: {
		Layer: LayerUser, RequiredIDs: []string{"user"},
		Backend: BackendVector, Durability: DurabilityPersistent, LatencyBudgetP95: "tens-hundreds-ms",
	},
	LayerSession: {
		Layer: LayerSession, RequiredIDs: []string{"user", "session"},
		Backend: BackendCache, Durability: DurabilityVolatile, LatencyBudgetP95: "ms", DefaultTTL: "1h",
	},
	LayerProject: {
		Layer: LayerProject, RequiredIDs: []string{"project"},
		Backend: BackendVector, Durability: DurabilityPersistent, LatencyBudgetP95: "tens-hundreds-ms",
	},
	LayerTeam: {
		// Resolves spec §4.1's "Procedural (tens of ms): relational fact
		// store with (subject, predicate, object) tuples; no vectors" to
		// the Team layer: team-shared knowledge is naturally rule/fact
		// shaped (conventions, policies-as-facts) rather than prose to
		// embed. Documented as an open-question resolution in DESIGN.md.
		Layer: LayerTeam, RequiredIDs: []string{"team"},
		Backend: BackendFact, Durability: DurabilityPersistent, LatencyBudgetP95: "tens-ms", SkipEmbedding: true,
	},
	LayerOrg: {
		Layer: LayerOrg, RequiredIDs: []string{"org"},
		Backend: BackendVector, Durability: DurabilityPersistent, LatencyBudgetP95: "tens-hundreds-ms",
	},
	LayerCompany: {
		Layer: LayerCompany, RequiredIDs: []string{"company"},
		Backend: BackendVector, Durability: DurabilityPersistent, LatencyBudgetP95: "tens-hundreds-ms",
	},
}

// Identifiers is the (tenant, agent, user, session, project, team, org,
// company) scoping tuple carried by every memory operation (spec §3
// "layer identifiers").
type Identifiers struct {
	Tenant  string
	Agent   string
	User    string
	Session string
	Project string
	Team    string
	Org     string
	Company string
}

// field returns the value for a required-identifier name used in
// LayerSpec.RequiredIDs.
func (id Identifiers) field(name string) string {
	switch name {
	case "agent":
		return id.Agent
	case "user":
		return id.User
	case "session":
		return id.Session
	case "project":
		return id.Project
	case "team":
		return id.Team
	case "org":
		return id.Org
	case "company":
		return id.Company
	default:
		return ""
	}
}

// MissingRequired returns the names of required identifiers that are
// empty for the given layer, per the §4.1 matrix. Tenant is always
// required and checked separately by callers.
func MissingRequired(layer Layer, id Identifiers) []string {
	spec, ok := LayerSpecs[layer]
	if !ok {
		return nil
	}
	var missing []string
	for _, name := range spec.RequiredIDs {
		if id.field(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
