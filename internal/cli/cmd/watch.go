package cmd

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"ace/internal/cli/client"

	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live progress events for a run (or '*' for all runs)",
		Run:   runWatch,
	}

	cmd.Flags().StringP("id", "i", "", "Run ID to watch, '*' for all (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) {
	runID, err := cmd.Flags().GetString("id")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	resp, err := client.SendRequest(http.MethodGet, "/subscribe/"+runID, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: Watch failed - %s\n", resp.Status)
		return
	}

	// SSE：只关心data行，流在run结束时由服务端关掉
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			fmt.Println(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error: stream closed - %v\n", err)
	}
}
