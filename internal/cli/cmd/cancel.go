package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewCancelCommand creates the cancel command
func NewCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Request cancellation of a task",
		Run:   runCancel,
	}

	cmd.Flags().UintP("id", "i", 0, "Task ID to cancel (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runCancel(cmd *cobra.Command, args []string) {
	id, err := cmd.Flags().GetUint("id")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if _, ok := fetchData(http.MethodPost, fmt.Sprintf("/task/%d/cancel", id), nil); !ok {
		return
	}
	fmt.Printf("Cancellation requested for task %d\n", id)
}
