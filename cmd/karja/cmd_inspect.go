package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <instance-id>...",
	Short: "Show the tool's raw output for instances",
	Long: `Run describe-instances for the given ids and print the tool's
output untouched. Pipe it into jq for anything fancier.`,
	Example: `  karja inspect i-0123456789abcdef0
  karja inspect i-aaa i-bbb | jq '.Reservations[].Instances[].State'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	svc := buildService(cfg, logger)
	out, err := svc.Inspect(cmd.Context(), args)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
