package guard

import (
	"context"
	"fmt"
)

// Built-in policies. They load first, so files from a policy dir with
// the same names replace them.
var defaultPolicies = []struct {
	name    string
	content string
}{
	{
		name: "blessed-protection",
		content: `package karja

import rego.v1

# Blessed instances must not be stopped or terminated.
decision := "deny" if {
	input.action in {"stop", "terminate"}
	input.instance.tags["karja:blessed"] == "true"
}

reason := "instance is blessed" if {
	decision == "deny"
}

risk := "high" if {
	decision == "deny"
}`,
	},
	{
		name: "production-terminate",
		content: `package karja

import rego.v1

# Terminating production capacity needs a second look.
decision := "require_approval" if {
	input.action == "terminate"
	input.instance.tags.Environment == "production"
}

reason := "terminating a production instance" if {
	decision == "require_approval"
}

risk := "medium" if {
	decision == "require_approval"
}`,
	},
}

// LoadDefaults compiles the built-in policies.
func (g *Guard) LoadDefaults(ctx context.Context) error {
	for _, policy := range defaultPolicies {
		if err := g.LoadPolicy(ctx, policy.name, policy.content); err != nil {
			return fmt.Errorf("failed to load default policy %s: %w", policy.name, err)
		}
	}
	g.logger.Debug().Int("count", len(defaultPolicies)).Msg("default policies loaded")
	return nil
}
