package tutor

import "fmt"

// ErrEmptyMessage indicates the incoming chat message was missing or
// blank. Checked before any store access.
var ErrEmptyMessage = fmt.Errorf("message must not be empty")

// GenerationError wraps a failure of the generation capability at one
// of its call sites. The turn's conversation log is never appended
// when one occurs; derived-state updates that already committed stand.
type GenerationError struct {
	Stage string // "progress-summary", "pattern-refine" or "reply"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
