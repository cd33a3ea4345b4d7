// Package textgen wraps the language model used for conversational replies.
package textgen

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyOutput is returned when a model answers with nothing usable.
var ErrEmptyOutput = errors.New("textgen: empty output")

// Generator produces free text for a system role and user input.
type Generator interface {
	Generate(ctx context.Context, systemRole, userInput string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, systemRole, userInput string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, systemRole, userInput string) (string, error) {
	return f(ctx, systemRole, userInput)
}

// GenerateOr returns generated text, or fallback when g is nil, fails, or
// returns only whitespace. Provider errors never reach the caller.
func GenerateOr(ctx context.Context, g Generator, systemRole, userInput, fallback string) string {
	if g == nil {
		return fallback
	}
	out, err := g.Generate(ctx, systemRole, userInput)
	if err != nil {
		return fallback
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback
	}
	return out
}
