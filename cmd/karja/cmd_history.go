package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/journal"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [instance-id]",
	Short: "Show the action journal",
	Long: `Show past actions, newest first. With an instance id, only that
instance's history; without, the most recent actions across the fleet.`,
	Example: `  karja history                    # Recent actions
  karja history i-0123456789abcdef0
  karja history -n 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum records to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	j, err := journal.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	var records []journal.Record
	if len(args) == 1 {
		records, err = j.History(args[0], historyLimit)
	} else {
		records, err = j.Recent(historyLimit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No journal entries.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tINSTANCE\tSTATUS\tDETAIL")
	for _, r := range records {
		detail := r.Detail
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Action, r.InstanceID, r.Status, detail)
	}
	return tw.Flush()
}
