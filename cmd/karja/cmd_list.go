package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/types"
	"github.com/yairfalse/karja/view"
)

var (
	listOutput string
	listState  string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list [filter]",
	Aliases: []string{"ls"},
	Short:   "List EC2 instances",
	Long: `List every instance the current profile can see, one row per
instance, in the order the tool reports them. An optional filter
argument narrows by substring over id, name, type, state and ip.`,
	Example: `  karja list                       # Current profile
  karja list --profile prod        # Specific profile
  karja list web                   # Only instances matching "web"
  karja list --state stopped       # Only stopped instances
  karja list -o json               # Machine-readable output`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table, json")
	listCmd.Flags().StringVar(&listState, "state", "", "Only instances in this lifecycle state")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	svc := buildService(cfg, logger)
	instances, err := svc.Refresh(cmd.Context())
	if err != nil {
		return err
	}

	criteria := types.InstanceFilter{State: listState}
	if len(args) == 1 {
		criteria.Text = args[0]
	}
	if criteria.Text != "" || criteria.State != "" {
		filtered := make([]types.Instance, 0, len(instances))
		for _, inst := range instances {
			if inst.Matches(criteria) {
				filtered = append(filtered, inst)
			}
		}
		instances = filtered
	}

	switch listOutput {
	case "table":
		printInstances(cmd.OutOrStdout(), instances)
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(instances)
	default:
		return fmt.Errorf("invalid output format: %s (must be one of: table, json)", listOutput)
	}
	return nil
}

func printInstances(w io.Writer, instances []types.Instance) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "No instances found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(view.Headers(), "\t"))
	for _, row := range view.ProjectAll(instances) {
		fmt.Fprintln(tw, strings.Join(row.Columns(), "\t"))
	}
	_ = tw.Flush()
}
