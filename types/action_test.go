package types

import "testing"

func TestAction_Subcommand(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionStart, "start-instances"},
		{ActionStop, "stop-instances"},
		{ActionTerminate, "terminate-instances"},
		{ActionInspect, "describe-instances"},
	}

	for _, tt := range tests {
		if got := tt.action.Subcommand(); got != tt.want {
			t.Errorf("Subcommand(%s) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestAction_Destructive(t *testing.T) {
	if !ActionTerminate.Destructive() {
		t.Error("terminate must be destructive")
	}
	for _, a := range []Action{ActionStart, ActionStop, ActionInspect} {
		if a.Destructive() {
			t.Errorf("%s must not be destructive", a)
		}
	}
}

func TestAction_Validate(t *testing.T) {
	for _, a := range Actions() {
		if err := a.Validate(); err != nil {
			t.Errorf("Validate(%s) = %v, want nil", a, err)
		}
	}
	if err := Action("reboot").Validate(); err == nil {
		t.Error("Validate(reboot) = nil, want error")
	}
}
