package audit

import (
	"fmt"
	"strings"
)

// Stage names a step of the generation pipeline.
type Stage string

// Pipeline stages, in the order an attempt passes through them.
const (
	StageDrafting       Stage = "drafting"
	StageValidating     Stage = "validating"
	StageRepairing      Stage = "repairing"
	StagePostProcessing Stage = "post_processing"
	StageAccepted       Stage = "accepted"
	StageRejected       Stage = "rejected"
)

// ParseError reports generated text that is not a JSON object.
type ParseError struct {
	Offset       int64
	Msg          string
	Unterminated bool
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("parse document at offset %d: %s", e.Offset, e.Msg)
	}
	return "parse document: " + e.Msg
}

// SchemaViolationError lists every violation found in a decoded document.
type SchemaViolationError struct {
	Violations []string
}

func (e *SchemaViolationError) Error() string {
	return "schema violation: " + strings.Join(e.Violations, "; ")
}

// TruncatedError is returned when generation stopped at the token limit.
type TruncatedError struct {
	Attempt int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("generation truncated on attempt %d", e.Attempt)
}

// FatalPipelineError is returned once the attempt budget is exhausted.
type FatalPipelineError struct {
	Stage    Stage
	Attempts int
	Last     error
}

func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("audit generation failed at %s after %d attempts: %v", e.Stage, e.Attempts, e.Last)
}

func (e *FatalPipelineError) Unwrap() error { return e.Last }
