package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"ace/internal/cli/client"
	"ace/internal/common"

	"github.com/spf13/cobra"
)

// RegisterCommands adds all available commands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(NewLoginCommand())
	rootCmd.AddCommand(NewSubmitCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewCancelCommand())
	rootCmd.AddCommand(NewRunsCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewAlertsCommand())
	rootCmd.AddCommand(NewStatsCommand())
}

// fetchData sends the request and unwraps the standard response envelope,
// printing errors the same way everywhere.
func fetchData(method, path string, body []byte) (interface{}, bool) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	resp, err := client.SendRequest(method, path, reader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	raw, err := client.ReadResponseBody(resp)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}

	var envelope common.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		fmt.Printf("Error: Failed to parse response - %v\n", err)
		return nil, false
	}
	if envelope.Code != common.SuccessCode {
		fmt.Printf("Request failed: %s\n", envelope.Message)
		return nil, false
	}
	return envelope.Data, true
}

func printJSON(data interface{}) {
	formatted, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Printf("Error: Failed to format output - %v\n", err)
		return
	}
	fmt.Println(string(formatted))
}
