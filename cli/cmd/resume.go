package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"orchestrator/cli/style"
	"orchestrator/cli/watch"
)

var resumeCommand = &cobra.Command{
	Use:   "resume <deployment-id>",
	Short: "Resume a failed deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCommand)
}

func runResume(cmd *cobra.Command, args []string) error {
	st, err := client.FetchStatus(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	run := watch.Run{ID: args[0], Status: strings.ToLower(strings.TrimSpace(string(st.Status)))}

	n, err := watch.NewGateway(client, nil, log).Resume(cmd.Context(), run)
	if err != nil {
		return describe(err)
	}
	switch n.Level {
	case watch.NoticeSuccess:
		fmt.Println(style.SuccessBox.Render("✓ " + n.Text))
	default:
		fmt.Println(style.DimText.Render(n.Text))
	}
	return nil
}
