package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ace/pkg/api"

	"github.com/spf13/cobra"
)

func NewSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new task to the queue",
		Run:   runSubmit,
	}

	cmd.Flags().StringP("title", "t", "", "Task title (required)")
	cmd.Flags().StringP("description", "d", "", "Task description (required)")
	cmd.Flags().StringP("category", "c", "", "Task category: feature/bug/refactor/docs/test (required)")
	cmd.Flags().IntP("priority", "p", 5, "Task priority, 1 (highest) to 10")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("description")
	cmd.MarkFlagRequired("category")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) {
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	category, _ := cmd.Flags().GetString("category")
	priority, _ := cmd.Flags().GetInt("priority")

	req := api.SubmitTaskRequest{
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    priority,
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		fmt.Printf("Error: Failed to serialize data - %v\n", err)
		return
	}

	data, ok := fetchData(http.MethodPost, "/task", jsonData)
	if !ok {
		return
	}
	printJSON(data)
}
