package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caseflow-io/caseflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of caseflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("caseflow version %s\n", caseflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
