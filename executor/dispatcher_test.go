package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/karja/awscli"
	"github.com/yairfalse/karja/guard"
	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/journal"
	"github.com/yairfalse/karja/types"
)

type fakeRunner struct {
	commands []awscli.Command
	output   []byte
	err      error
}

func (f *fakeRunner) Run(_ context.Context, cmd awscli.Command) ([]byte, error) {
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// stateChangeOutput renders the tool's response to a mutating action
// for the given ids, all transitioning out of "running".
func stateChangeOutput(t *testing.T, action types.Action, ids ...string) []byte {
	t.Helper()

	resultKeys := map[types.Action]string{
		types.ActionStart:     "StartingInstances",
		types.ActionStop:      "StoppingInstances",
		types.ActionTerminate: "TerminatingInstances",
	}
	nextState := map[types.Action]string{
		types.ActionStart:     "pending",
		types.ActionStop:      "stopping",
		types.ActionTerminate: "shutting-down",
	}

	changes := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, map[string]interface{}{
			"InstanceId":    id,
			"CurrentState":  map[string]string{"Name": nextState[action]},
			"PreviousState": map[string]string{"Name": "running"},
		})
	}
	data, err := json.Marshal(map[string]interface{}{resultKeys[action]: changes})
	require.NoError(t, err)
	return data
}

func newTestDispatcher(t *testing.T, runner awscli.Runner, g *guard.Guard, confirmer Confirmer, opts Options) (*Dispatcher, *journal.Journal) {
	t.Helper()

	svc := inventory.NewService(runner, "aws", zerolog.Nop())
	j, err := journal.Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return NewDispatcher(svc, g, j, confirmer, opts, zerolog.Nop()), j
}

func defaultGuard(t *testing.T) *guard.Guard {
	t.Helper()
	g := guard.NewGuard(zerolog.Nop())
	require.NoError(t, g.LoadDefaults(context.Background()))
	return g
}

func runningInstance(id string, tags map[string]string) types.Instance {
	return types.Instance{
		InstanceID:   id,
		InstanceType: "t3.micro",
		State:        "running",
		Tags:         tags,
	}
}

func resultFor(t *testing.T, result *Result, id string) InstanceResult {
	t.Helper()
	for _, r := range result.Results {
		if r.InstanceID == id {
			return r
		}
	}
	t.Fatalf("no result for %s", id)
	return InstanceResult{}
}

func TestDispatch_StopBatch(t *testing.T) {
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionStop, "i-1", "i-2")}
	d, j := newTestDispatcher(t, runner, nil, nil, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionStop, []types.Instance{
		runningInstance("i-1", nil),
		runningInstance("i-2", nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalTargets)
	assert.Equal(t, 2, result.SucceededCount)
	assert.Zero(t, result.FailedCount)
	assert.Zero(t, result.SkippedCount)
	assert.False(t, result.PartialFailure)
	assert.Equal(t, "success", result.OverallStatus())

	// One tool call for the whole batch.
	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"ec2", "stop-instances", "--instance-ids", "i-1", "i-2"}, runner.commands[0].Args)

	first := resultFor(t, result, "i-1")
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, "running", first.PreviousState)
	assert.Equal(t, "stopping", first.CurrentState)

	history, err := j.History("i-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.ActionStop, history[0].Action)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "running -> stopping", history[0].Detail)
}

func TestDispatch_TerminateWithoutConfirmer(t *testing.T) {
	runner := &fakeRunner{}
	d, _ := newTestDispatcher(t, runner, nil, nil, Options{})

	_, err := d.Dispatch(context.Background(), types.ActionTerminate, []types.Instance{
		runningInstance("i-1", nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no confirmer")
	assert.Empty(t, runner.commands)
}

func TestDispatch_DeclinedConfirmation(t *testing.T) {
	decline := ConfirmerFunc(func(context.Context, ConfirmationRequest) (bool, error) {
		return false, nil
	})
	runner := &fakeRunner{}
	d, j := newTestDispatcher(t, runner, nil, decline, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionTerminate, []types.Instance{
		runningInstance("i-1", nil),
		runningInstance("i-2", nil),
	})
	require.NoError(t, err)

	assert.Empty(t, runner.commands)
	assert.Equal(t, 2, result.SkippedCount)
	assert.Equal(t, "skipped", result.OverallStatus())
	for _, r := range result.Results {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.Equal(t, "user declined confirmation", r.SkipReason)
	}

	// Declined batches still leave an audit trail.
	recent, err := j.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestDispatch_ConfirmedTerminate(t *testing.T) {
	var req ConfirmationRequest
	accept := ConfirmerFunc(func(_ context.Context, r ConfirmationRequest) (bool, error) {
		req = r
		return true, nil
	})
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionTerminate, "i-1")}
	d, _ := newTestDispatcher(t, runner, nil, accept, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionTerminate, []types.Instance{
		runningInstance("i-1", nil),
	})
	require.NoError(t, err)

	assert.Equal(t, types.ActionTerminate, req.Action)
	assert.Equal(t, []string{"i-1"}, req.Instances)
	assert.True(t, req.DefaultNo)

	assert.Equal(t, 1, result.SucceededCount)
	assert.Equal(t, "shutting-down", resultFor(t, result, "i-1").CurrentState)
}

func TestDispatch_SkipConfirmationOption(t *testing.T) {
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionTerminate, "i-1")}
	d, _ := newTestDispatcher(t, runner, nil, nil, Options{SkipConfirmation: true})

	result, err := d.Dispatch(context.Background(), types.ActionTerminate, []types.Instance{
		runningInstance("i-1", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SucceededCount)
}

func TestDispatch_BlessedInstanceBlocked(t *testing.T) {
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionStop, "i-app")}
	d, _ := newTestDispatcher(t, runner, defaultGuard(t), nil, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionStop, []types.Instance{
		runningInstance("i-app", map[string]string{"Name": "app"}),
		runningInstance("i-db", map[string]string{"Name": "db", types.TagBlessed: "true"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SucceededCount)
	assert.Equal(t, 1, result.SkippedCount)

	// The blocked id never reaches the tool.
	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"ec2", "stop-instances", "--instance-ids", "i-app"}, runner.commands[0].Args)

	blocked := resultFor(t, result, "i-db")
	assert.Equal(t, StatusSkipped, blocked.Status)
	assert.Contains(t, blocked.SkipReason, "blessed")
	assert.Equal(t, StatusSuccess, resultFor(t, result, "i-app").Status)
}

func TestDispatch_ApprovalReasonsReachConfirmer(t *testing.T) {
	var req ConfirmationRequest
	accept := ConfirmerFunc(func(_ context.Context, r ConfirmationRequest) (bool, error) {
		req = r
		return true, nil
	})
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionTerminate, "i-prod")}
	d, _ := newTestDispatcher(t, runner, defaultGuard(t), accept, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionTerminate, []types.Instance{
		runningInstance("i-prod", map[string]string{types.TagEnvironment: "production"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SucceededCount)
	require.Len(t, req.Reasons, 1)
	assert.Contains(t, req.Reasons[0], "i-prod")
}

func TestDispatch_MissingIDReported(t *testing.T) {
	// The tool only reports on i-1 even though i-2 was requested.
	runner := &fakeRunner{output: stateChangeOutput(t, types.ActionStart, "i-1")}
	d, _ := newTestDispatcher(t, runner, nil, nil, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionStart, []types.Instance{
		runningInstance("i-1", nil),
		runningInstance("i-2", nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SucceededCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, result.PartialFailure)
	assert.Equal(t, "partial", result.OverallStatus())

	failed := resultFor(t, result, "i-2")
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "no state change returned", failed.Error)
}

func TestDispatch_ToolFailureMarksAllFailed(t *testing.T) {
	runner := &fakeRunner{err: &awscli.ExitError{
		Cmd:    "aws ec2 stop-instances --instance-ids i-1 i-2",
		Code:   254,
		Stderr: "An error occurred (UnauthorizedOperation)",
	}}
	d, _ := newTestDispatcher(t, runner, nil, nil, Options{})

	result, err := d.Dispatch(context.Background(), types.ActionStop, []types.Instance{
		runningInstance("i-1", nil),
		runningInstance("i-2", nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FailedCount)
	assert.False(t, result.PartialFailure)
	assert.Equal(t, "failed", result.OverallStatus())
	for _, r := range result.Results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Contains(t, r.Error, "UnauthorizedOperation")
	}
}

func TestDispatch_DryRun(t *testing.T) {
	runner := &fakeRunner{}
	d, _ := newTestDispatcher(t, runner, nil, nil, Options{DryRun: true})

	result, err := d.Dispatch(context.Background(), types.ActionStop, []types.Instance{
		runningInstance("i-1", nil),
		runningInstance("i-2", nil),
	})
	require.NoError(t, err)

	assert.Empty(t, runner.commands)
	assert.Equal(t, 2, result.SkippedCount)
	for _, r := range result.Results {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.Equal(t, "dry run", r.SkipReason)
	}
}

func TestDispatch_RejectsInspect(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeRunner{}, nil, nil, Options{})

	_, err := d.Dispatch(context.Background(), types.ActionInspect, []types.Instance{
		runningInstance("i-1", nil),
	})
	require.Error(t, err)
}

func TestDispatch_RejectsEmptyTargets(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeRunner{}, nil, nil, Options{})

	_, err := d.Dispatch(context.Background(), types.ActionStop, nil)
	require.Error(t, err)
}
