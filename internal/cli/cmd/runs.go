package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List active runs or get one run's details",
		Run:   runRuns,
	}

	cmd.Flags().StringP("id", "i", "", "Specific run ID to show")
	cmd.Flags().StringP("status", "s", "", "Filter active runs by status")
	cmd.Flags().Uint("task", 0, "Filter active runs by task ID")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) {
	runID, _ := cmd.Flags().GetString("id")
	status, _ := cmd.Flags().GetString("status")
	taskID, _ := cmd.Flags().GetUint("task")

	var path string
	if runID != "" {
		path = "/run/" + runID
	} else {
		query := url.Values{}
		if status != "" {
			query.Set("status", status)
		}
		if taskID != 0 {
			query.Set("task_id", fmt.Sprint(taskID))
		}
		path = "/run"
		if encoded := query.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}

	data, ok := fetchData(http.MethodGet, path, nil)
	if !ok {
		return
	}
	printJSON(data)
}
