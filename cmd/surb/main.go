package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "surb",
		Short:         "Sync Jira sprint tickets into Notion and report them on Slack",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newSyncCmd(), newNotifyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
