package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchestrator/cli/style"
)

var deploymentsLimit int

var deploymentsCmd = &cobra.Command{
	Use:     "deployments",
	Short:   "List recent deployment runs",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runDeployments,
}

func init() {
	deploymentsCmd.Flags().IntVarP(&deploymentsLimit, "limit", "n", 20, "maximum rows (0 for the server default)")
	rootCmd.AddCommand(deploymentsCmd)
}

func runDeployments(cmd *cobra.Command, args []string) error {
	list, err := client.ListDeployments(cmd.Context(), deploymentsLimit)
	if err != nil {
		return describe(err)
	}
	if len(list) == 0 {
		fmt.Println(style.DimText.Render("No deployments yet."))
		return nil
	}

	fmt.Println(style.Banner.Render("⚡ DEPLOYMENTS") + style.Subtitle.Render(fmt.Sprintf("  %d run(s)", len(list))))
	fmt.Println()
	header := fmt.Sprintf("  %-38s %-11s %-14s %-18s %s", "ID", "STATUS", "TENANT", "PROJECT", "CREATED")
	fmt.Println(style.TableHeader.Render(header))

	for _, d := range list {
		status := string(d.Status)
		fmt.Printf("  %s %s %s %s %s\n",
			style.Bold.Render(padRight(string(d.ID), 38)),
			style.RunStatus(status).Render(padRight(status, 11)),
			padRight(string(d.Tenant), 14),
			padRight(string(d.Project), 18),
			style.DimText.Render(string(d.CreatedAt)),
		)
	}
	fmt.Println()
	return nil
}
