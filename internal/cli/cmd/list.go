package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Run:   runList,
	}

	cmd.Flags().StringP("status", "s", "", "Filter by task status")
	cmd.Flags().StringP("category", "c", "", "Filter by category")
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("page-size", 20, "Page size")

	return cmd
}

func runList(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")

	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if category != "" {
		query.Set("category", category)
	}
	query.Set("page", fmt.Sprint(page))
	query.Set("page_size", fmt.Sprint(pageSize))

	data, ok := fetchData(http.MethodGet, "/task?"+query.Encode(), nil)
	if !ok {
		return
	}
	printJSON(data)
}
