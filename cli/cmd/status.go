package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchestrator/cli/style"
	"orchestrator/cli/watch"
)

var statusFlags struct {
	level string
	tail  int
}

var statusCmd = &cobra.Command{
	Use:     "status <deployment-id>",
	Short:   "Print one snapshot of a deployment's steps and log",
	Aliases: []string{"s"},
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFlags.level, "level", "l", "all", "log filter: all, info, success, error")
	statusCmd.Flags().IntVarP(&statusFlags.tail, "tail", "n", 20, "log lines to show (0 for all)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	level, err := watch.ParseLevel(statusFlags.level)
	if err != nil {
		return err
	}

	st, err := client.FetchStatus(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	res := watch.Normalizer{}.Normalize(st)
	for _, w := range res.Warnings {
		log.Debug("malformed status data: " + w.Error())
	}

	fmt.Println(renderHeader(res.Run))
	fmt.Println()
	fmt.Println(renderSteps(res.Steps, ""))
	fmt.Println()
	fmt.Println("  " + newProgressBar(40).ViewAs(float64(res.Percent)/100))
	fmt.Println()

	lines := watch.FilterLines(res.Lines, level)
	if statusFlags.tail > 0 && len(lines) > statusFlags.tail {
		lines = lines[len(lines)-statusFlags.tail:]
	}
	title := fmt.Sprintf("Logs (%s, %d of %d)", level, len(lines), len(res.Lines))
	fmt.Println(style.TableHeader.Render(title))
	if len(lines) == 0 {
		fmt.Println(style.DimText.Render("  no log lines"))
		return nil
	}
	fmt.Println(renderLines(lines))
	return nil
}
