package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
)

// MarshalSessionState serializes a SessionState to JSON bytes.
func MarshalSessionState(state *types.SessionState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("cannot marshal nil SessionState")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SessionState to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSessionState deserializes a SessionState from JSON bytes.
func UnmarshalSessionState(data []byte) (*types.SessionState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var state types.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SessionState: %w", err)
	}

	return &state, nil
}
