package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of algoroom",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info(cnst.CommandName))
		},
	}

	rootCmd = &cobra.Command{
		Use:          cnst.CommandName,
		Short:        "Shared code editing sessions",
		Long:         `algoroom serves shared code editing sessions and joins them from the terminal`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "", "path to configuration file")
	rootCmd.AddCommand(versionCmd, serveCmd, joinCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
