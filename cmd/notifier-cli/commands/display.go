package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/iltoga/BusinessSuite-sub003/internal/dialog"
)

// terminalSink renders dialog queue changes as terminal output.
type terminalSink struct{}

func (terminalSink) ItemOpened(item dialog.Item) {
	ts := item.ReceivedAt.Format(time.Kitchen)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", ts, item.Title)
	if item.Body != "" {
		fmt.Fprintf(&sb, ": %s", item.Body)
	}
	if item.ScheduledFor != "" {
		fmt.Fprintf(&sb, " (due %s", item.ScheduledFor)
		if item.Timezone != "" {
			fmt.Fprintf(&sb, " %s", item.Timezone)
		}
		sb.WriteString(")")
	}

	fmt.Println(sb.String())
}

func (terminalSink) ItemClosing(dialog.Item) {}

func (terminalSink) ItemRemoved(string) {}
