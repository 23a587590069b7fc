package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/types"
)

var (
	startYes    bool
	startDryRun bool
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start <instance-id>...",
	Short: "Start stopped instances",
	Example: `  karja start i-0123456789abcdef0
  karja start i-aaa i-bbb i-ccc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVarP(&startYes, "yes", "y", false, "Skip confirmation when a policy requires approval")
	startCmd.Flags().BoolVar(&startDryRun, "dry-run", false, "Show what would happen without invoking the tool")
}

func runStart(cmd *cobra.Command, args []string) error {
	return runBulkAction(cmd, types.ActionStart, args, startYes, startDryRun)
}
