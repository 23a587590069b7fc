package tui

import (
	"testing"

	"github.com/yairfalse/karja/types"
)

func instance(id, name, state string) types.Instance {
	return types.Instance{
		InstanceID:   id,
		InstanceType: "t3.micro",
		State:        state,
		PrivateIP:    "10.0.0.5",
		Tags:         map[string]string{"Name": name},
	}
}

func fleet() []types.Instance {
	return []types.Instance{
		instance("i-1", "web1", "running"),
		instance("i-2", "web2", "running"),
		instance("i-3", "db1", "stopped"),
	}
}

func markedIDs(m *Model) []string {
	var ids []string
	for _, inst := range m.Visible() {
		if m.IsMarked(inst.InstanceID) {
			ids = append(ids, inst.InstanceID)
		}
	}
	return ids
}

func TestModel_ToggleAndTargets(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())

	m.Toggle("i-1")
	m.Toggle("i-3")
	if got := m.MarkedCount(); got != 2 {
		t.Fatalf("MarkedCount = %d, want 2", got)
	}

	targets := m.Targets("i-2")
	if len(targets) != 2 || targets[0].InstanceID != "i-1" || targets[1].InstanceID != "i-3" {
		t.Fatalf("Targets = %v, want marked instances in display order", targets)
	}

	// Toggling again unmarks.
	m.Toggle("i-1")
	if m.IsMarked("i-1") {
		t.Fatal("i-1 still marked after second toggle")
	}
}

func TestModel_EmptySelectionWidensToCursor(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())

	targets := m.Targets("i-2")
	if len(targets) != 1 || targets[0].InstanceID != "i-2" {
		t.Fatalf("Targets = %v, want just the cursor row", targets)
	}
}

func TestModel_NoCursorNoMarksMeansNoTargets(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())

	if targets := m.Targets(""); len(targets) != 0 {
		t.Fatalf("Targets = %v, want none", targets)
	}
	if targets := m.Targets("i-gone"); len(targets) != 0 {
		t.Fatalf("Targets for unknown cursor = %v, want none", targets)
	}
}

func TestModel_RefreshPrunesVanishedMarks(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())
	m.Toggle("i-1")
	m.Toggle("i-2")

	// i-2 disappeared between refreshes.
	m.SetInstances([]types.Instance{
		instance("i-1", "web1", "running"),
		instance("i-3", "db1", "stopped"),
	})

	if m.IsMarked("i-2") {
		t.Fatal("mark on vanished instance survived refresh")
	}
	if !m.IsMarked("i-1") {
		t.Fatal("mark on surviving instance was lost")
	}
}

func TestModel_ToggleAll(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())

	m.ToggleAll()
	if got := m.MarkedCount(); got != 3 {
		t.Fatalf("MarkedCount after mark all = %d, want 3", got)
	}

	// Any marks present: toggle-all clears instead.
	m.ToggleAll()
	if got := m.MarkedCount(); got != 0 {
		t.Fatalf("MarkedCount after clear = %d, want 0", got)
	}
}

func TestModel_FilterNarrowsAndPrunesMarks(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())
	m.Toggle("i-1")
	m.Toggle("i-3")

	m.SetFilter("web")
	visible := m.Visible()
	if len(visible) != 2 || visible[0].InstanceID != "i-1" || visible[1].InstanceID != "i-2" {
		t.Fatalf("Visible = %v, want the two web instances", visible)
	}
	if got := markedIDs(m); len(got) != 1 || got[0] != "i-1" {
		t.Fatalf("marks after filter = %v, want only i-1", got)
	}

	m.ClearFilter()
	if len(m.Visible()) != 3 {
		t.Fatalf("Visible after clearing filter = %d, want 3", len(m.Visible()))
	}
	// The pruned mark does not come back.
	if m.IsMarked("i-3") {
		t.Fatal("pruned mark reappeared after clearing filter")
	}
}

func TestModel_FilterMatchesSeveralFields(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())

	cases := map[string]int{
		"web":      2,
		"DB1":      1,
		"stopped":  1,
		"i-2":      1,
		"t3.micro": 3,
		"nomatch":  0,
	}
	for query, want := range cases {
		m.SetFilter(query)
		if got := len(m.Visible()); got != want {
			t.Errorf("filter %q matched %d instances, want %d", query, got, want)
		}
	}
}

func TestModel_ToggleIgnoresHiddenInstance(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())
	m.SetFilter("web")

	m.Toggle("i-3")
	if m.IsMarked("i-3") {
		t.Fatal("toggling a filtered-out instance should do nothing")
	}
}

func TestModel_RowsFollowVisible(t *testing.T) {
	m := NewModel()
	m.SetInstances(fleet())
	m.SetFilter("db")

	rows := m.Rows()
	if len(rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(rows))
	}
	if rows[0].InstanceID != "i-3" || rows[0].Name != "db1" {
		t.Fatalf("row = %+v, want the db instance", rows[0])
	}
}
