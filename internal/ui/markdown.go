package ui

import (
	"os"

	"charm.land/glamour/v2"
	"golang.org/x/term"
)

// RenderMarkdown renders markdown text using glamour. Returns the original
// text unchanged when colors are disabled or rendering fails, so piped output
// stays valid markdown.
// Word wraps at terminal width (or 80 columns if width can't be detected).
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}

	// Cap at 100 chars for readability.
	const maxReadableWidth = 100
	wrapWidth := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wrapWidth = w
	}
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
