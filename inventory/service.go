package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yairfalse/karja/awscli"
	"github.com/yairfalse/karja/types"
)

// Service runs EC2 queries and state changes through the external tool.
// Profile and region are process-wide state shared by every invocation;
// the mutex keeps them consistent when the UI changes profile while a
// worker goroutine is mid-refresh.
type Service struct {
	runner awscli.Runner
	logger zerolog.Logger

	mu      sync.RWMutex
	tool    string
	profile string
	region  string
}

// NewService builds a service that invokes tool through runner. An
// empty tool name falls back to awscli.DefaultTool.
func NewService(runner awscli.Runner, tool string, logger zerolog.Logger) *Service {
	if tool == "" {
		tool = awscli.DefaultTool
	}
	return &Service{
		runner: runner,
		logger: logger,
		tool:   tool,
	}
}

// SetProfile switches the credential profile for all subsequent
// invocations. Empty clears it back to the tool default.
func (s *Service) SetProfile(profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != profile {
		s.logger.Info().Str("profile", profile).Msg("profile changed")
	}
	s.profile = profile
}

// Profile returns the active credential profile, "" when unset.
func (s *Service) Profile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetRegion switches the region override for all subsequent
// invocations. Empty clears it back to the tool default.
func (s *Service) SetRegion(region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = region
}

// Region returns the active region override, "" when unset.
func (s *Service) Region() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region
}

// command snapshots the current profile and region into one invocation.
func (s *Service) command(args ...string) awscli.Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return awscli.Command{
		Tool:    s.tool,
		Profile: s.profile,
		Region:  s.region,
		Args:    args,
	}
}

// Refresh fetches the full inventory. The result replaces whatever the
// caller held before; there is no merging with earlier snapshots.
func (s *Service) Refresh(ctx context.Context) ([]types.Instance, error) {
	out, err := s.runner.Run(ctx, s.command("ec2", "describe-instances"))
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}

	instances, err := ParseInstances(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	s.logger.Debug().Int("count", len(instances)).Msg("inventory refreshed")
	return instances, nil
}

// ChangeState runs one start, stop or terminate call covering all the
// given ids and returns the per-instance transitions the API reported.
func (s *Service) ChangeState(ctx context.Context, action types.Action, ids []string) ([]types.StateChange, error) {
	if !action.Mutating() {
		return nil, fmt.Errorf("action %s does not change instance state", action)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s needs at least one instance id", action)
	}

	args := append([]string{"ec2", action.Subcommand(), "--instance-ids"}, ids...)
	out, err := s.runner.Run(ctx, s.command(args...))
	if err != nil {
		return nil, fmt.Errorf("failed to %s instances: %w", action, err)
	}

	changes, err := ParseStateChanges(action, out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", action, err)
	}
	return changes, nil
}

// Start powers on the given instances.
func (s *Service) Start(ctx context.Context, ids []string) ([]types.StateChange, error) {
	return s.ChangeState(ctx, types.ActionStart, ids)
}

// Stop powers off the given instances.
func (s *Service) Stop(ctx context.Context, ids []string) ([]types.StateChange, error) {
	return s.ChangeState(ctx, types.ActionStop, ids)
}

// Terminate destroys the given instances. Confirmation is the caller's
// job; by this point the decision is made.
func (s *Service) Terminate(ctx context.Context, ids []string) ([]types.StateChange, error) {
	return s.ChangeState(ctx, types.ActionTerminate, ids)
}

// Inspect returns the tool's verbatim describe output for the given
// ids. No re-parsing: the operator reads exactly what the tool said.
func (s *Service) Inspect(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("inspect needs at least one instance id")
	}

	args := append([]string{"ec2", "describe-instances", "--instance-ids"}, ids...)
	out, err := s.runner.Run(ctx, s.command(args...))
	if err != nil {
		return "", fmt.Errorf("failed to inspect instances: %w", err)
	}
	return string(out), nil
}
