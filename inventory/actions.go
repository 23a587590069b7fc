package inventory

import (
	"encoding/json"
	"fmt"

	"github.com/yairfalse/karja/types"
)

// stateChangeKeys maps each mutating action to the array the CLI nests
// its per-instance results under.
var stateChangeKeys = map[types.Action]string{
	types.ActionStart:     "StartingInstances",
	types.ActionStop:      "StoppingInstances",
	types.ActionTerminate: "TerminatingInstances",
}

type rawStateChange struct {
	InstanceID    *string `json:"InstanceId"`
	CurrentState  *state  `json:"CurrentState"`
	PreviousState *state  `json:"PreviousState"`
}

// ParseStateChanges decodes the per-instance results of a start, stop
// or terminate call. The CLI reports one entry per instance it acted
// on; callers compare the returned ids against the ids they asked for
// to find instances the API silently skipped.
func ParseStateChanges(action types.Action, data []byte) ([]types.StateChange, error) {
	key, ok := stateChangeKeys[action]
	if !ok {
		return nil, fmt.Errorf("action %s does not produce state changes", action)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode %s output: %v", ErrMalformed, action.Subcommand(), err)
	}
	payload, ok := resp[key]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %s field", ErrMalformed, key)
	}

	var rawChanges []rawStateChange
	if err := json.Unmarshal(payload, &rawChanges); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformed, key, err)
	}

	changes := make([]types.StateChange, 0, len(rawChanges))
	for i, rc := range rawChanges {
		if rc.InstanceID == nil || *rc.InstanceID == "" {
			return nil, fmt.Errorf("%w: %s entry %d has no InstanceId", ErrMalformed, key, i)
		}
		change := types.StateChange{InstanceID: *rc.InstanceID}
		if rc.CurrentState != nil && rc.CurrentState.Name != nil {
			change.CurrentState = *rc.CurrentState.Name
		}
		if rc.PreviousState != nil && rc.PreviousState.Name != nil {
			change.PreviousState = *rc.PreviousState.Name
		}
		changes = append(changes, change)
	}
	return changes, nil
}
