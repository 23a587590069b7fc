package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/types"
)

var (
	stopYes    bool
	stopDryRun bool
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop <instance-id>...",
	Short: "Stop running instances",
	Long: `Stop the given instances. Stopped instances keep their EBS
volumes and can be started again later.`,
	Example: `  karja stop i-0123456789abcdef0
  karja stop i-aaa i-bbb`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().BoolVarP(&stopYes, "yes", "y", false, "Skip confirmation when a policy requires approval")
	stopCmd.Flags().BoolVar(&stopDryRun, "dry-run", false, "Show what would happen without invoking the tool")
}

func runStop(cmd *cobra.Command, args []string) error {
	return runBulkAction(cmd, types.ActionStop, args, stopYes, stopDryRun)
}
