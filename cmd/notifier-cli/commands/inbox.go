package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var inboxLimit int

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "View today's reminder inbox",
	Long:  `Display today's calendar reminders and the unread count.`,
	RunE:  runInbox,
}

func init() {
	inboxCmd.Flags().IntVarP(&inboxLimit, "limit", "n", 20,
		"Maximum number of reminders to display")
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, _, err := getClient()
	if err != nil {
		return err
	}

	snapshot, err := client.FetchInbox(ctx, inboxLimit)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(snapshot)
	}

	if len(snapshot.Today) == 0 {
		fmt.Println("No reminders for today.")
		return nil
	}

	fmt.Printf("Today's reminders (%d unread):\n\n", snapshot.UnreadCount)
	for _, rem := range snapshot.Today {
		fmt.Print(formatReminder(rem))
	}

	return nil
}
