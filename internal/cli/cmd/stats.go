package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Run:   runStats,
	}
	return cmd
}

func runStats(cmd *cobra.Command, args []string) {
	data, ok := fetchData(http.MethodGet, "/stats", nil)
	if !ok {
		return
	}
	printJSON(data)
}
