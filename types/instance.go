// Package types holds the core domain types shared across karja.
package types

import (
	"strings"
	"time"
)

// Well-known tag keys.
const (
	TagName        = "Name"
	TagEnvironment = "Environment"
	TagBlessed     = "karja:blessed"
	TagOwner       = "karja:owner"
)

// Instance is one EC2 instance as karja sees it: the normalized form of
// what the external tool reports, with Tags already flattened into a
// key→value map. Raw array-of-pairs tags never leave the parser.
type Instance struct {
	InstanceID   string            `json:"instance_id"`
	InstanceType string            `json:"instance_type"`
	State        string            `json:"state"`
	AZ           string            `json:"az,omitempty"`
	PrivateIP    string            `json:"private_ip,omitempty"`
	PublicIP     string            `json:"public_ip,omitempty"`
	ImageID      string            `json:"image_id,omitempty"`
	LaunchTime   time.Time         `json:"launch_time"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Name returns the Name tag, or "" when the instance has none.
func (i Instance) Name() string {
	return i.Tags[TagName]
}

// Blessed reports whether the instance is marked as protected.
func (i Instance) Blessed() bool {
	return i.Tags[TagBlessed] == "true"
}

// Environment returns the Environment tag, or "" when untagged.
func (i Instance) Environment() string {
	return i.Tags[TagEnvironment]
}

// Owner returns the karja owner tag, falling back to the Team tag.
func (i Instance) Owner() string {
	if owner := i.Tags[TagOwner]; owner != "" {
		return owner
	}
	return i.Tags["Team"]
}

// InstanceFilter narrows an instance listing.
type InstanceFilter struct {
	Text  string   `json:"text,omitempty"`  // substring over id, name, type, state
	State string   `json:"state,omitempty"` // exact lifecycle state
	IDs   []string `json:"ids,omitempty"`
}

// Matches checks the instance against every criterion in the filter.
func (i Instance) Matches(f InstanceFilter) bool {
	return i.matchesText(f.Text) && i.matchesState(f.State) && i.matchesIDs(f.IDs)
}

func (i Instance) matchesText(text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	for _, hay := range []string{i.InstanceID, i.Name(), i.InstanceType, i.State, i.PrivateIP} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func (i Instance) matchesState(state string) bool {
	return state == "" || i.State == state
}

func (i Instance) matchesIDs(ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if i.InstanceID == id {
			return true
		}
	}
	return false
}

// BuildInstanceMap converts a slice of instances to a map keyed by instance id.
func BuildInstanceMap(instances []Instance) map[string]Instance {
	m := make(map[string]Instance, len(instances))
	for _, inst := range instances {
		m[inst.InstanceID] = inst
	}
	return m
}

// CountByState tallies instances per lifecycle state.
func CountByState(instances []Instance) map[string]int {
	counts := make(map[string]int)
	for _, inst := range instances {
		counts[inst.State]++
	}
	return counts
}
