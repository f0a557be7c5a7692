// Package textgen produces the BAR and use-case documents, with a
// deterministic fallback when no model is reachable or the model output is
// malformed.
package textgen

import (
	"context"
	"strings"
)

// Generator produces a markdown document from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Static always returns its fixed document. It backs the no-credentials path
// and tests.
type Static struct {
	Document string
	Err      error
}

func (s Static) Generate(context.Context, string) (string, error) {
	return s.Document, s.Err
}

// GenerateOr runs the generator and returns its output when it is a
// well-formed document per valid; on a nil generator, a generation error, or
// malformed output it returns the fallback. The published artifact is always
// parseable downstream.
func GenerateOr(ctx context.Context, g Generator, prompt, fallback string, valid func(string) bool) string {
	if g == nil {
		return fallback
	}
	out, err := g.Generate(ctx, prompt)
	if err != nil {
		return fallback
	}
	if !valid(strings.TrimSpace(out)) {
		return fallback
	}
	return out
}
