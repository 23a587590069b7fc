// Package tui is the interactive terminal frontend: an instance table
// with mark-based selection, bulk actions behind confirmation, an
// inspect view and a profile picker. Rendering is tview; the selection
// rules live in Model so they stay testable without a terminal.
package tui

import (
	"strings"

	"github.com/yairfalse/karja/types"
	"github.com/yairfalse/karja/view"
)

// Model tracks what the table shows and which rows are marked. Marked
// ids are always a subset of the visible ids: refreshes and filter
// changes prune marks on rows that disappeared.
type Model struct {
	instances []types.Instance
	visible   []types.Instance
	marked    map[string]struct{}
	filter    string
}

func NewModel() *Model {
	return &Model{marked: make(map[string]struct{})}
}

// SetInstances replaces the inventory, keeping marks only for ids that
// are still visible.
func (m *Model) SetInstances(instances []types.Instance) {
	m.instances = instances
	m.applyFilter()
}

// SetFilter narrows the visible rows to instances matching the query.
// An empty query shows everything.
func (m *Model) SetFilter(query string) {
	m.filter = strings.TrimSpace(query)
	m.applyFilter()
}

func (m *Model) ClearFilter() {
	m.SetFilter("")
}

func (m *Model) Filter() string {
	return m.filter
}

// Visible returns the instances the table currently shows, in
// inventory order.
func (m *Model) Visible() []types.Instance {
	return m.visible
}

// Rows projects the visible instances for display.
func (m *Model) Rows() []view.Row {
	return view.ProjectAll(m.visible)
}

// InstanceAt returns the visible instance at index i.
func (m *Model) InstanceAt(i int) (types.Instance, bool) {
	if i < 0 || i >= len(m.visible) {
		return types.Instance{}, false
	}
	return m.visible[i], true
}

// Toggle marks or unmarks one visible instance.
func (m *Model) Toggle(id string) {
	if !m.isVisible(id) {
		return
	}
	if _, ok := m.marked[id]; ok {
		delete(m.marked, id)
		return
	}
	m.marked[id] = struct{}{}
}

// ToggleAll marks every visible instance, or clears all marks if any
// are already set.
func (m *Model) ToggleAll() {
	if len(m.marked) > 0 {
		m.ClearMarks()
		return
	}
	for _, inst := range m.visible {
		m.marked[inst.InstanceID] = struct{}{}
	}
}

func (m *Model) ClearMarks() {
	m.marked = make(map[string]struct{})
}

func (m *Model) IsMarked(id string) bool {
	_, ok := m.marked[id]
	return ok
}

func (m *Model) MarkedCount() int {
	return len(m.marked)
}

// Targets resolves what an action applies to: the marked instances in
// display order, or just the cursor row when nothing is marked. An
// empty result means there is nothing to act on.
func (m *Model) Targets(cursorID string) []types.Instance {
	if len(m.marked) > 0 {
		targets := make([]types.Instance, 0, len(m.marked))
		for _, inst := range m.visible {
			if _, ok := m.marked[inst.InstanceID]; ok {
				targets = append(targets, inst)
			}
		}
		return targets
	}
	for _, inst := range m.visible {
		if inst.InstanceID == cursorID {
			return []types.Instance{inst}
		}
	}
	return nil
}

func (m *Model) isVisible(id string) bool {
	for _, inst := range m.visible {
		if inst.InstanceID == id {
			return true
		}
	}
	return false
}

// applyFilter recomputes the visible set and drops marks on rows that
// fell out of it.
func (m *Model) applyFilter() {
	if m.filter == "" {
		m.visible = m.instances
	} else {
		criteria := types.InstanceFilter{Text: m.filter}
		m.visible = make([]types.Instance, 0, len(m.instances))
		for _, inst := range m.instances {
			if inst.Matches(criteria) {
				m.visible = append(m.visible, inst)
			}
		}
	}

	keep := make(map[string]struct{}, len(m.marked))
	for _, inst := range m.visible {
		if _, ok := m.marked[inst.InstanceID]; ok {
			keep[inst.InstanceID] = struct{}{}
		}
	}
	m.marked = keep
}
