package main

import (
	"fmt"
	"os"

	"github.com/iltoga/BusinessSuite-sub003/cmd/notifier-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
