package push

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandNotifier shells out to a desktop notification command, by default
// notify-send. The tag is passed as a synchronous hint so notification
// daemons that honor it replace an existing notification with the same tag
// instead of stacking a new one.
type CommandNotifier struct {
	// Command is the binary to run. Defaults to notify-send.
	Command string

	// AppName is reported to the notification daemon.
	AppName string
}

// NewCommandNotifier creates a notifier for the given command, falling back
// to notify-send when empty.
func NewCommandNotifier(command, appName string) *CommandNotifier {
	if command == "" {
		command = "notify-send"
	}
	if appName == "" {
		appName = "notifierd"
	}

	return &CommandNotifier{Command: command, AppName: appName}
}

// Notify implements SystemNotifier.
func (c *CommandNotifier) Notify(ctx context.Context, title, body,
	tag string) error {

	args := []string{
		"--app-name", c.AppName,
		"--hint", "string:x-canonical-private-synchronous:" + tag,
		title,
	}
	if body != "" {
		args = append(args, body)
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Command, err, out)
	}

	return nil
}

// Close implements SystemNotifier. Shell notifiers have no close verb, so
// replacing the notification under the same tag with an expiring empty one
// is the closest available behavior.
func (c *CommandNotifier) Close(ctx context.Context, tag string) error {
	cmd := exec.CommandContext(ctx, c.Command,
		"--app-name", c.AppName,
		"--hint", "string:x-canonical-private-synchronous:"+tag,
		"--expire-time", "1",
		" ",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Command, err, out)
	}

	return nil
}
