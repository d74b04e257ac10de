package web

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// renderer converts reminder markdown to HTML. GFM covers the tables and
// strikethrough the CRM's composer emits.
var renderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderMarkdown renders reminder content to HTML for surface display. On a
// render failure the content is returned escaped rather than lost.
func RenderMarkdown(md string) string {
	var sb strings.Builder
	if err := renderer.Convert([]byte(md), &sb); err != nil {
		log.Warnf("Markdown render failed: %v", err)
		return html.EscapeString(md)
	}

	return strings.TrimSpace(sb.String())
}
