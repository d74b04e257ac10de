package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/build"
	"github.com/iltoga/BusinessSuite-sub003/internal/dialog"
	"github.com/iltoga/BusinessSuite-sub003/internal/inbox"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
	"github.com/iltoga/BusinessSuite-sub003/internal/web"
)

var (
	followHidden       bool
	followPollInterval time.Duration
	followAutoClose    time.Duration
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow reminder notifications live",
	Long: `Attach to the local notifier daemon as a foreground surface and
print reminder notifications as they arrive. While follow is running and
visible, reminders are shown here instead of as OS notifications.`,
	RunE: runFollow,
}

func init() {
	followCmd.Flags().BoolVar(&followHidden, "hidden", false,
		"Attach without declaring visibility (OS notifications keep firing)")
	followCmd.Flags().DurationVar(&followPollInterval, "poll-interval",
		inbox.DefaultPollInterval, "Inbox poll interval")
	followCmd.Flags().DurationVar(&followAutoClose, "auto-close",
		dialog.DefaultAutoCloseDelay,
		"How long a pushed reminder stays displayed")
}

func runFollow(cmd *cobra.Command, args []string) error {
	client, tokens, err := getClient()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	// Problems from the background poller go to stderr so they do not
	// interleave with the reminder display.
	logMgr := build.NewLogManager(os.Stderr)
	inbox.UseLogger(logMgr.GenSubLogger(build.TagINBX))
	if err := logMgr.SetLogLevels("warn"); err != nil {
		return err
	}

	// Local actor system hosting the inbox service.
	system := actor.NewActorSystem()
	defer system.Shutdown(context.Background())

	inboxRef := inbox.InboxKey.Spawn(system, "inbox", inbox.NewService(
		inbox.Config{Backend: client, Tokens: tokens},
	))

	// Reminder dialogs rendered to the terminal.
	queue := dialog.NewQueue(dialog.Config{
		Sink:           &terminalSink{},
		AutoCloseDelay: followAutoClose,
	})
	defer queue.Shutdown()

	poller := inbox.NewPoller(inboxRef, followPollInterval)
	poller.OnRefresh(func(snap inbox.SnapshotResponse) {
		backfillDialogs(queue, snap.Today)
	})
	poller.Start(ctx)
	defer poller.Stop()

	// Attach to the daemon as a surface.
	conn, _, err := websocket.DefaultDialer.DialContext(
		ctx, "ws://"+daemonAddr+"/ws", nil,
	)
	if err != nil {
		return fmt.Errorf("unable to reach daemon at %s: %w",
			daemonAddr, err)
	}
	defer conn.Close()

	// Close the connection when the user interrupts, unblocking the
	// read loop below.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	// Handshake: session token, optional push provider config, then
	// visibility.
	err = sendWire(conn, web.MsgTypeAuthToken, web.AuthTokenPayload{
		Token: tokens.Token(),
	})
	if err != nil {
		return err
	}

	if cfg, ok := providerConfigFromEnv(); ok {
		err = sendWire(conn, web.MsgTypeFirebaseConfig, cfg)
		if err != nil {
			return err
		}
	}

	err = sendWire(conn, web.MsgTypeVisibility, web.VisibilityPayload{
		Visible: !followHidden,
	})
	if err != nil {
		return err
	}

	if !followHidden {
		fmt.Println("Following reminders (ctrl-c to stop)...")
	} else {
		fmt.Println("Attached hidden (ctrl-c to stop)...")
	}

	for {
		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload,omitempty"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("daemon connection lost: %w", err)
		}

		switch env.Type {
		case web.MsgTypeConnected:
			// Already announced above.

		case web.MsgTypePushNotification:
			var delivered web.PushNotificationPayload
			if err := json.Unmarshal(env.Payload, &delivered); err != nil {
				fmt.Fprintf(os.Stderr,
					"Undecodable notification: %v\n", err)
				continue
			}

			queue.EnqueueFromPayload(delivered.Payload)
			inboxRef.Tell(ctx, inbox.PushReceivedMsg{
				Payload: delivered.Payload,
			})

		case web.MsgTypeNavigate:
			var nav web.NavigatePayload
			if err := json.Unmarshal(env.Payload, &nav); err != nil {
				continue
			}
			fmt.Printf("Open: %s\n", nav.Link)

		case web.MsgTypeError:
			var wireErr web.ErrorPayload
			if err := json.Unmarshal(env.Payload, &wireErr); err == nil {
				fmt.Fprintf(os.Stderr, "Daemon: %s\n",
					wireErr.Message)
			}
		}
	}
}

// backfillDialogs surfaces unread polled reminders as dialogs that stay up
// until dismissed. A reminder already showing from its push arrival is
// suppressed by the queue's reminder id dedup.
func backfillDialogs(queue *dialog.Queue, today []api.Reminder) {
	for _, rem := range today {
		if rem.ReadAt != nil {
			continue
		}
		queue.EnqueueFromReminder(rem)
	}
}

// sendWire writes one envelope to the daemon.
func sendWire(conn *websocket.Conn, msgType string, payload any) error {
	return conn.WriteJSON(web.Envelope{Type: msgType, Payload: payload})
}

// providerConfigFromEnv reads the push provider config from
// $NOTIFIER_FCM_CONFIG, a JSON object matching the provider handshake.
func providerConfigFromEnv() (push.ProviderConfig, bool) {
	raw := os.Getenv("NOTIFIER_FCM_CONFIG")
	if raw == "" {
		return push.ProviderConfig{}, false
	}

	var cfg push.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring bad $NOTIFIER_FCM_CONFIG: %v\n",
			err)
		return push.ProviderConfig{}, false
	}

	return cfg, true
}
