package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var readAll bool

var readCmd = &cobra.Command{
	Use:   "read [reminder-id...]",
	Short: "Mark reminders as read",
	Long: `Mark the given reminders as read, or all of today's reminders
with --all.`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().BoolVarP(&readAll, "all", "a", false,
		"Mark all of today's reminders as read")
}

func runRead(cmd *cobra.Command, args []string) error {
	if !readAll && len(args) == 0 {
		return fmt.Errorf("pass reminder ids or --all")
	}

	var ids []int64
	if !readAll {
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reminder id %q", arg)
			}
			ids = append(ids, id)
		}
	}

	client, _, err := getClient()
	if err != nil {
		return err
	}

	unread, err := client.MarkRead(context.Background(), ids)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(map[string]int{"unreadCount": unread})
	}

	fmt.Printf("Done, %d unread remaining.\n", unread)
	return nil
}
