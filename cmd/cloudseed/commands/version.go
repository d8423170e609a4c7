package commands

import (
	"fmt"

	"github.com/skyfold/cloudseed/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s (minimum peer compatibility %s)\n", version.AppName, version.Current, version.MinimumCompatibility)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
