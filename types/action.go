package types

import "fmt"

// Action is one of the operations karja can run against instances.
type Action string

const (
	ActionStart     Action = "start"
	ActionStop      Action = "stop"
	ActionTerminate Action = "terminate"
	ActionInspect   Action = "inspect"
)

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{ActionStart, ActionStop, ActionTerminate, ActionInspect}
}

// Validate ensures the action is one karja knows how to dispatch.
func (a Action) Validate() error {
	switch a {
	case ActionStart, ActionStop, ActionTerminate, ActionInspect:
		return nil
	}
	return fmt.Errorf("unknown action %q", string(a))
}

// Destructive reports whether the action is irreversible.
// Destructive actions always require explicit confirmation.
func (a Action) Destructive() bool {
	return a == ActionTerminate
}

// Mutating reports whether the action changes instance state at all.
// Inspect is the only read-only action.
func (a Action) Mutating() bool {
	return a == ActionStart || a == ActionStop || a == ActionTerminate
}

// Subcommand returns the ec2 subcommand token for the external tool.
func (a Action) Subcommand() string {
	switch a {
	case ActionStart:
		return "start-instances"
	case ActionStop:
		return "stop-instances"
	case ActionTerminate:
		return "terminate-instances"
	case ActionInspect:
		return "describe-instances"
	}
	return ""
}

// StateChange is the per-instance transition reported by the external
// tool in response to a mutating action.
type StateChange struct {
	InstanceID    string `json:"instance_id"`
	PreviousState string `json:"previous_state"`
	CurrentState  string `json:"current_state"`
}
