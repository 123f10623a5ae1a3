package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get one task with its runs",
		Run:   runGet,
	}

	cmd.Flags().UintP("id", "i", 0, "Task ID (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) {
	id, err := cmd.Flags().GetUint("id")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	data, ok := fetchData(http.MethodGet, fmt.Sprintf("/task/%d", id), nil)
	if !ok {
		return
	}
	printJSON(data)
}
