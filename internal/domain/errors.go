package domain

import "fmt"

// Sentinel errors for the common failure classes.
var (
	ErrInvalidConfiguration = fmt.Errorf("invalid configuration")
	ErrChapterNotFound      = fmt.Errorf("chapter not found")
	ErrConflictingResponse  = fmt.Errorf("chapter already has a response of a different kind")
)

// SequenceError reports a chapter arriving out of order.
type SequenceError struct {
	Expected int
	Got      int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("chapter sequence violation: expected chapter %d, got %d", e.Expected, e.Got)
}

// StateValidationError reports a structural invariant violation in the
// adventure state.
type StateValidationError struct {
	Field  string
	Reason string
}

func (e *StateValidationError) Error() string {
	return fmt.Sprintf("invalid state: %s: %s", e.Field, e.Reason)
}

// GenerationError wraps a chapter generation failure with the chapter it
// was meant to produce.
type GenerationError struct {
	ChapterNumber int
	Err           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation of chapter %d failed: %v", e.ChapterNumber, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
