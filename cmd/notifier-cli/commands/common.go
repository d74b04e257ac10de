package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
)

// resolveBackend returns the backend base URL from the flag or environment.
func resolveBackend() (string, error) {
	if backendURL != "" {
		return strings.TrimRight(backendURL, "/"), nil
	}
	if env := os.Getenv("NOTIFIER_BACKEND"); env != "" {
		return strings.TrimRight(env, "/"), nil
	}

	return "", errors.New(
		"no backend configured: pass --backend or set $NOTIFIER_BACKEND",
	)
}

// resolveToken returns the session token from the flag or environment.
func resolveToken() (string, error) {
	if sessionToken != "" {
		return sessionToken, nil
	}
	if env := os.Getenv("NOTIFIER_TOKEN"); env != "" {
		return env, nil
	}

	return "", errors.New(
		"no session token: pass --token or set $NOTIFIER_TOKEN",
	)
}

// getClient builds an authenticated API client for the configured backend.
func getClient() (*api.Client, *api.TokenStore, error) {
	base, err := resolveBackend()
	if err != nil {
		return nil, nil, err
	}
	token, err := resolveToken()
	if err != nil {
		return nil, nil, err
	}

	tokens := api.NewTokenStore()
	tokens.SetToken(token)
	if tokens.Expired() {
		return nil, nil, errors.New("session token is expired")
	}

	client := api.New(api.Config{
		BaseURL: base,
		Tokens:  tokens,
	})

	return client, tokens, nil
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

// formatReminder renders one reminder as a text block.
func formatReminder(rem api.Reminder) string {
	var sb strings.Builder

	marker := "●"
	if rem.ReadAt != nil {
		marker = " "
	}

	fmt.Fprintf(&sb, "%s #%d %s", marker, rem.ID, rem.Content)
	if rem.ReminderTime != "" {
		fmt.Fprintf(&sb, " (%s", rem.ReminderTime)
		if rem.Timezone != "" {
			fmt.Fprintf(&sb, " %s", rem.Timezone)
		}
		sb.WriteString(")")
	}
	sb.WriteString("\n")

	return sb.String()
}
