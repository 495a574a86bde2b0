package audit

import "context"

// Request is one structured-generation call.
type Request struct {
	System          string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Response carries the raw generated text. Truncated is set when the
// provider stopped at the output token limit.
type Response struct {
	Text      string
	Truncated bool
}

// Generator produces text for a prompt. Implementations return transport
// failures as errors; anything the model said is in Response.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
