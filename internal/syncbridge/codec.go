package syncbridge

import (
	"encoding/json"
	"time"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

type stateEnvelope struct {
	LastCommitHash string `json:"last_commit_hash"`
	LastSyncAtMs   int64  `json:"last_sync_at_ms"`
}

func encodeState(st State) ([]byte, error) {
	env := stateEnvelope{LastCommitHash: st.LastCommitHash}
	if !st.LastSyncAt.IsZero() {
		env.LastSyncAtMs = st.LastSyncAt.UnixMilli()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "syncbridge.encodeState", "", err)
	}
	return data, nil
}

func decodeState(data []byte) (State, error) {
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, mkcerr.Wrap(mkcerr.ProviderError, "syncbridge.decodeState", "", err)
	}
	st := State{LastCommitHash: env.LastCommitHash}
	if env.LastSyncAtMs != 0 {
		st.LastSyncAt = time.UnixMilli(env.LastSyncAtMs).UTC()
	}
	return st, nil
}
