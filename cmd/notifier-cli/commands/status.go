package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the notifier daemon is running",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get("http://" + daemonAddr + "/healthz")
	if err != nil {
		if outputFormat == "json" {
			return outputJSON(map[string]any{
				"running": false,
				"daemon":  daemonAddr,
			})
		}

		fmt.Printf("Daemon not reachable at %s: %v\n", daemonAddr, err)
		return nil
	}
	defer resp.Body.Close()

	var health struct {
		Status     string `json:"status"`
		Surfaces   int    `json:"surfaces"`
		OutboxSize int    `json:"outboxSize"`
	}
	running := resp.StatusCode == http.StatusOK
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		running = false
	}

	if outputFormat == "json" {
		return outputJSON(map[string]any{
			"running":    running,
			"daemon":     daemonAddr,
			"surfaces":   health.Surfaces,
			"outboxSize": health.OutboxSize,
		})
	}

	if !running {
		fmt.Printf("Daemon at %s returned an unexpected response.\n",
			daemonAddr)
		return nil
	}

	fmt.Printf("Daemon running at %s (%d surfaces attached, %d acks "+
		"queued).\n", daemonAddr, health.Surfaces, health.OutboxSize)
	return nil
}
