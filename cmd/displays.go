package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/spf13/cobra"
)

// CreateDisplaysCmd creates the displays command.
func CreateDisplaysCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "displays",
		Short: "List displays available for capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printDisplays(cmd.OutOrStdout(), capture.ListDisplays(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printDisplays(out io.Writer, displays []capture.Display, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(displays)
	}
	if len(displays) == 0 {
		_, err := fmt.Fprintln(out, "no active displays")
		return err
	}
	for _, d := range displays {
		if _, err := fmt.Fprintf(out, "%d: %dx%d at (%d,%d)\n", d.Index, d.Width, d.Height, d.X, d.Y); err != nil {
			return err
		}
	}
	return nil
}
