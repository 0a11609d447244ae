// Package llm provides the text-understanding capability used by the intake
// stage. The pipeline depends only on the Generator interface so tests and
// mock mode can substitute a deterministic implementation.
package llm

import "context"

// Generator produces a best-effort completion for an instruction/input pair.
// Implementations return whatever text the backing model produced; callers
// must tolerate malformed output.
type Generator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, instructions, input string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, instructions, input string) (string, error) {
	return f(ctx, instructions, input)
}
