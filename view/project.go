// Package view projects instances into the fixed six-column table that
// both the TUI and the list command render.
package view

import (
	"strings"

	"github.com/yairfalse/karja/types"
)

// AbsentCell renders a value the instance does not have. Keeping it a
// single constant means every column shows absence the same way.
const AbsentCell = "-"

// Headers returns the column titles in render order.
func Headers() []string {
	return []string{"INSTANCE ID", "TYPE", "NAME", "STATUS", "PRIVATE IP", "DETAIL"}
}

// Row is one rendered table line, keyed by InstanceID. Every field is
// display text; nothing downstream re-parses a row.
type Row struct {
	InstanceID string
	Type       string
	Name       string
	Status     string
	PrivateIP  string
	Detail     string
}

// Columns returns the cells in Headers order.
func (r Row) Columns() []string {
	return []string{r.InstanceID, r.Type, r.Name, r.Status, r.PrivateIP, r.Detail}
}

// Project maps one instance to its row. Total for any well-formed
// instance: a missing Name tag becomes an empty cell, a missing
// private IP becomes AbsentCell, and Detail is never empty.
func Project(inst types.Instance) Row {
	return Row{
		InstanceID: inst.InstanceID,
		Type:       inst.InstanceType,
		Name:       inst.Name(),
		Status:     inst.State,
		PrivateIP:  orAbsent(inst.PrivateIP),
		Detail:     detail(inst),
	}
}

// ProjectAll maps instances to rows preserving input order.
func ProjectAll(instances []types.Instance) []Row {
	rows := make([]Row, len(instances))
	for i, inst := range instances {
		rows[i] = Project(inst)
	}
	return rows
}

func orAbsent(s string) string {
	if s == "" {
		return AbsentCell
	}
	return s
}

// detail compacts the rest of the record into one cell so the table
// shows what the fixed columns leave out.
func detail(inst types.Instance) string {
	parts := make([]string, 0, 4)
	if inst.AZ != "" {
		parts = append(parts, "az="+inst.AZ)
	}
	if inst.ImageID != "" {
		parts = append(parts, "image="+inst.ImageID)
	}
	if !inst.LaunchTime.IsZero() {
		parts = append(parts, "launched="+inst.LaunchTime.UTC().Format("2006-01-02"))
	}
	if inst.PublicIP != "" {
		parts = append(parts, "public="+inst.PublicIP)
	}
	if len(parts) == 0 {
		return AbsentCell
	}
	return strings.Join(parts, " ")
}
