// Package guard evaluates OPA policies before karja mutates instances.
// Policies can deny an action outright or demand explicit approval;
// inspect and refresh are read-only and never consulted.
package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/yairfalse/karja/types"
)

// Decisions a policy can reach, in ascending severity.
const (
	DecisionAllow           = "allow"
	DecisionDeny            = "deny"
	DecisionRequireApproval = "require_approval"
)

// Input is the document policies evaluate against.
type Input struct {
	Action      string         `json:"action"`
	Instance    types.Instance `json:"instance"`
	Environment string         `json:"environment"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Verdict is the aggregated outcome across all loaded policies.
type Verdict struct {
	Decision string   `json:"decision"`
	Reason   string   `json:"reason"`
	Risk     string   `json:"risk"`
	Policies []string `json:"policies"`
}

// Allowed reports whether the action may proceed without ceremony.
func (v Verdict) Allowed() bool { return v.Decision == DecisionAllow }

// Denied reports whether the action is blocked outright.
func (v Verdict) Denied() bool { return v.Decision == DecisionDeny }

// NeedsApproval reports whether the action needs explicit confirmation
// beyond what the action itself would require.
func (v Verdict) NeedsApproval() bool { return v.Decision == DecisionRequireApproval }

// Guard holds compiled policies. Each policy is its own prepared query
// so one broken file cannot poison the rest, and policies from
// different files never conflict inside rego; severity is resolved here.
type Guard struct {
	logger  zerolog.Logger
	queries map[string]rego.PreparedEvalQuery
}

// NewGuard creates an empty guard. Load policies before checking.
func NewGuard(logger zerolog.Logger) *Guard {
	return &Guard{
		logger:  logger,
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadPolicy compiles one Rego policy under the given name. Reloading a
// name replaces the previous version.
func (g *Guard) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	query := rego.New(
		rego.Query("data.karja"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	g.queries[name] = prepared
	g.logger.Debug().Str("policy", name).Msg("policy loaded")
	return nil
}

// LoadDir loads every .rego file under dir. Policy names come from the
// file names, so drop-in files can override the defaults.
func (g *Guard) LoadDir(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("policy dir does not exist: %s", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}

		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".rego")
		if err := g.LoadPolicy(ctx, name, string(content)); err != nil {
			return fmt.Errorf("failed to load policy from %s: %w", path, err)
		}
		return nil
	})
}

// Check evaluates every loaded policy against one action on one
// instance and aggregates to the most severe verdict. No loaded
// policies, or none matching, means allow.
func (g *Guard) Check(ctx context.Context, action types.Action, inst types.Instance) (Verdict, error) {
	input := Input{
		Action:      string(action),
		Instance:    inst,
		Environment: inst.Environment(),
		Timestamp:   time.Now(),
	}

	var matched []Verdict
	for name, query := range g.queries {
		verdict, err := g.evaluatePolicy(ctx, name, query, input)
		if err != nil {
			return Verdict{}, fmt.Errorf("policy %s failed on %s: %w", name, inst.InstanceID, err)
		}
		if verdict.Decision != "" {
			verdict.Policies = []string{name}
			matched = append(matched, verdict)
		}
	}

	final := aggregate(matched)
	if !final.Allowed() {
		g.logger.Warn().
			Str("instance_id", inst.InstanceID).
			Str("action", string(action)).
			Str("decision", final.Decision).
			Str("reason", final.Reason).
			Strs("policies", final.Policies).
			Msg("policy gate raised")
	}
	return final, nil
}

// evaluatePolicy runs a single prepared query.
func (g *Guard) evaluatePolicy(ctx context.Context, name string, query rego.PreparedEvalQuery, input Input) (Verdict, error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluation failed: %w", err)
	}
	if len(results) == 0 {
		return Verdict{}, nil
	}

	var verdict Verdict
	parseEvalResults(results, &verdict)
	return verdict, nil
}

// parseEvalResults pulls decision, reason and risk out of the rego
// result set. Policies publish plain string rules; anything else in the
// document is ignored.
func parseEvalResults(results rego.ResultSet, verdict *Verdict) {
	for _, res := range results {
		for key, value := range res.Bindings {
			bindVerdictField(key, value, verdict)
		}
		if len(res.Expressions) == 0 {
			continue
		}
		expr, ok := res.Expressions[0].Value.(map[string]interface{})
		if !ok {
			continue
		}
		for key, value := range expr {
			bindVerdictField(key, value, verdict)
		}
	}
}

func bindVerdictField(key string, value interface{}, verdict *Verdict) {
	str, ok := value.(string)
	if !ok {
		return
	}
	switch key {
	case "decision":
		verdict.Decision = str
	case "reason":
		verdict.Reason = str
	case "risk":
		verdict.Risk = str
	}
}

// aggregate combines per-policy verdicts: the most severe decision
// wins, the highest risk sticks, reasons accumulate.
func aggregate(verdicts []Verdict) Verdict {
	if len(verdicts) == 0 {
		return Verdict{
			Decision: DecisionAllow,
			Reason:   "no policies matched",
			Risk:     "low",
		}
	}

	priorityOrder := map[string]int{
		DecisionDeny:            3,
		DecisionRequireApproval: 2,
		DecisionAllow:           1,
	}
	riskOrder := map[string]int{
		"high":   3,
		"medium": 2,
		"low":    1,
	}

	final := Verdict{Decision: DecisionAllow, Risk: "low"}
	maxPriority, maxRisk := 0, 0
	var reasons []string

	for _, v := range verdicts {
		if p := priorityOrder[v.Decision]; p > maxPriority {
			maxPriority = p
			final.Decision = v.Decision
			final.Reason = v.Reason
		}
		if r := riskOrder[v.Risk]; r > maxRisk {
			maxRisk = r
			final.Risk = v.Risk
		}
		if v.Reason != "" {
			reasons = append(reasons, v.Reason)
		}
		final.Policies = append(final.Policies, v.Policies...)
	}

	if len(reasons) > 1 {
		final.Reason = strings.Join(reasons, "; ")
	}
	return final
}
