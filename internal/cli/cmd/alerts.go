package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewAlertsCommand creates the alerts command
func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List escalation alerts, acknowledge or resolve one",
		Run:   runAlerts,
	}

	cmd.Flags().StringP("status", "s", "", "Filter by alert status: firing/acknowledged/resolved")
	cmd.Flags().Uint("ack", 0, "Alert ID to acknowledge")
	cmd.Flags().Uint("resolve", 0, "Alert ID to resolve")

	return cmd
}

func runAlerts(cmd *cobra.Command, args []string) {
	ackID, _ := cmd.Flags().GetUint("ack")
	resolveID, _ := cmd.Flags().GetUint("resolve")
	status, _ := cmd.Flags().GetString("status")

	if ackID != 0 {
		if _, ok := fetchData(http.MethodPost, fmt.Sprintf("/alert/%d/ack", ackID), nil); !ok {
			return
		}
		fmt.Printf("Alert %d acknowledged\n", ackID)
		return
	}
	if resolveID != 0 {
		if _, ok := fetchData(http.MethodPost, fmt.Sprintf("/alert/%d/resolve", resolveID), nil); !ok {
			return
		}
		fmt.Printf("Alert %d resolved\n", resolveID)
		return
	}

	path := "/alert"
	if status != "" {
		path += "?status=" + status
	}
	data, ok := fetchData(http.MethodGet, path, nil)
	if !ok {
		return
	}
	printJSON(data)
}
