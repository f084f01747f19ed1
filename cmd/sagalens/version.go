package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sagalens"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sagalens",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sagalens version %s\n", strings.TrimSpace(sagalens.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
