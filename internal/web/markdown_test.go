package web

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	html := RenderMarkdown("Meet **Anna** at [the office](https://crm.example/office)")
	require.Contains(t, html, "<strong>Anna</strong>")
	require.Contains(t, html, `<a href="https://crm.example/office">the office</a>`)

	// GFM strikethrough comes through.
	require.Contains(
		t, RenderMarkdown("~~cancelled~~"), "<del>cancelled</del>",
	)

	// Plain text stays plain, wrapped in a paragraph.
	require.Equal(t, "<p>Lunch at noon</p>", RenderMarkdown("Lunch at noon"))
}
