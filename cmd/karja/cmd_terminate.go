package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/types"
)

var (
	terminateYes    bool
	terminateDryRun bool
)

// terminateCmd represents the terminate command
var terminateCmd = &cobra.Command{
	Use:   "terminate <instance-id>...",
	Short: "Terminate instances permanently",
	Long: `Terminate the given instances. Termination is irreversible, so
karja always asks for confirmation unless --yes is given.`,
	Example: `  karja terminate i-0123456789abcdef0
  karja terminate --yes i-aaa i-bbb    # No prompt, for scripts`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTerminate,
}

func init() {
	rootCmd.AddCommand(terminateCmd)

	terminateCmd.Flags().BoolVarP(&terminateYes, "yes", "y", false, "Skip the confirmation prompt")
	terminateCmd.Flags().BoolVar(&terminateDryRun, "dry-run", false, "Show what would happen without invoking the tool")
}

func runTerminate(cmd *cobra.Command, args []string) error {
	return runBulkAction(cmd, types.ActionTerminate, args, terminateYes, terminateDryRun)
}
