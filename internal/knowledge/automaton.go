package knowledge

import (
	"fmt"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// legalTransitions is the status automaton from spec §4.2:
//
//	Draft → Proposed → Accepted → Deprecated
//	Draft → Proposed → Rejected
//	         Proposed → Accepted → Superseded
//	Draft → Rejected
//
// All other transitions fail with InvalidStatusTransition.
var legalTransitions = map[mkctypes.Status]map[mkctypes.Status]bool{
	mkctypes.StatusDraft: {
		mkctypes.StatusProposed: true,
		mkctypes.StatusRejected: true,
	},
	mkctypes.StatusProposed: {
		mkctypes.StatusAccepted: true,
		mkctypes.StatusRejected: true,
	},
	mkctypes.StatusAccepted: {
		mkctypes.StatusDeprecated: true,
		mkctypes.StatusSuperseded: true,
	},
}

// validateTransition enforces the automaton above.
func validateTransition(from, to mkctypes.Status) error {
	if legalTransitions[from][to] {
		return nil
	}
	return mkcerr.New(mkcerr.InvalidStatusTransition, "knowledge.UpdateStatus",
		fmt.Sprintf("%s -> %s is not a legal transition", from, to))
}
