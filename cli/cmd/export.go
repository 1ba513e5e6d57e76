package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orchestrator/cli/watch"
)

var exportFlags struct {
	format string
	output string
	level  string
}

var exportCmd = &cobra.Command{
	Use:   "export <deployment-id>",
	Short: "Save, print or copy a deployment's log",
	Long: `Export the current log of a deployment.

Formats:
  text       plain lines (default file deployment-<id>.log)
  html       standalone page with the escaped log in a <pre> block
  clipboard  copy the plain text to the system clipboard`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.format, "format", "f", "text", "text, html or clipboard")
	f.StringVarP(&exportFlags.output, "output", "o", "", `output path ("-" for stdout)`)
	f.StringVarP(&exportFlags.level, "level", "l", "all", "export only lines matching this filter")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]
	level, err := watch.ParseLevel(exportFlags.level)
	if err != nil {
		return err
	}

	st, err := client.FetchStatus(cmd.Context(), id)
	if err != nil {
		return describe(err)
	}
	lines := watch.FilterLines(watch.Normalizer{}.Normalize(st).Lines, level)

	switch exportFlags.format {
	case "text":
		if exportFlags.output == "-" {
			fmt.Println(watch.LogText(lines))
			return nil
		}
		path := exportFlags.output
		if path == "" {
			path = watch.LogFileName(id)
		}
		if err := watch.WriteLogFile(path, lines); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d lines to %s\n", len(lines), path)
	case "html":
		page := watch.LogHTML(id, lines)
		if exportFlags.output == "" || exportFlags.output == "-" {
			fmt.Print(page)
			return nil
		}
		if err := os.WriteFile(exportFlags.output, []byte(page), 0644); err != nil {
			return fmt.Errorf("write page: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", exportFlags.output)
	case "clipboard":
		if err := watch.CopyLog(lines); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "copied %d lines\n", len(lines))
	default:
		return fmt.Errorf("unknown format %q (want text, html or clipboard)", exportFlags.format)
	}
	return nil
}
