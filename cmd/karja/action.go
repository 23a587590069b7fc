package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/executor"
	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/journal"
	"github.com/yairfalse/karja/types"
)

// promptConfirmer asks for confirmation on the terminal. Anything but
// an explicit yes declines.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, req executor.ConfirmationRequest) (bool, error) {
	fmt.Fprintf(p.out, "About to %s %d instance(s):\n", req.Action, len(req.Instances))
	for _, id := range req.Instances {
		fmt.Fprintf(p.out, "  %s\n", id)
	}
	for _, reason := range req.Reasons {
		fmt.Fprintf(p.out, "  ! %s\n", reason)
	}
	fmt.Fprint(p.out, "Proceed? [y/N]: ")

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// runBulkAction is the shared path for start, stop and terminate.
func runBulkAction(cmd *cobra.Command, action types.Action, ids []string, skipConfirm, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	g, err := buildGuard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	svc := buildService(cfg, logger)
	instances, err := resolveInstances(ctx, svc, ids)
	if err != nil {
		return err
	}

	confirmer := promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	opts := executor.Options{SkipConfirmation: skipConfirm, DryRun: dryRun}
	dispatcher := executor.NewDispatcher(svc, g, j, confirmer, opts, logger)

	result, err := dispatcher.Dispatch(ctx, action, instances)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	if result.FailedCount > 0 {
		return fmt.Errorf("%d of %d instances failed", result.FailedCount, result.TotalTargets)
	}
	return nil
}

// resolveInstances maps requested ids onto the live inventory, so
// policies evaluate real tags rather than bare ids.
func resolveInstances(ctx context.Context, svc *inventory.Service, ids []string) ([]types.Instance, error) {
	instances, err := svc.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	byID := types.BuildInstanceMap(instances)
	resolved := make([]types.Instance, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("instance %s not found in inventory", id)
		}
		resolved = append(resolved, inst)
	}
	return resolved, nil
}

func printResult(w io.Writer, result *executor.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE ID\tSTATUS\tDETAIL")
	for _, r := range result.Results {
		var detail string
		switch r.Status {
		case executor.StatusSuccess:
			detail = fmt.Sprintf("%s -> %s", r.PreviousState, r.CurrentState)
		case executor.StatusFailed:
			detail = r.Error
		case executor.StatusSkipped:
			detail = r.SkipReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.InstanceID, r.Status, detail)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%s: %d ok, %d failed, %d skipped\n",
		result.Action, result.SucceededCount, result.FailedCount, result.SkippedCount)
}
