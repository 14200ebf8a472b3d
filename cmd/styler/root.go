package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"photo-styler/internal/app"
	"photo-styler/internal/style"
)

// swapped in tests
var newGenerator = app.NewGenerator

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "styler",
		Short:        "Turn one portrait photo into a set of styled profile pictures",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newStylesCmd())
	return root
}

func newStylesCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "styles",
		Short: "Print the style catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := style.LoadFile(firstNonEmpty(catalogPath, os.Getenv("STYLE_CATALOG_FILE")))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, entry := range catalog {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, entry.Style, entry.Instruction)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML style catalog (default: built-in)")
	return cmd
}
