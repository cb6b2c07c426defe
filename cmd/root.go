package cmd

import (
	"github.com/spf13/cobra"
)

// Execute runs the daybreak CLI.
func Execute() error {
	root := &cobra.Command{Use: "daybreak", Short: "Daybreak planning assistant"}
	root.AddCommand(serveCMD())
	return root.Execute()
}
