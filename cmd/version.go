package cmd

import (
	"fmt"

	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("findy-courier version", utils.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
