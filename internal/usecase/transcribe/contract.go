package transcribe

import "time"

// Slot names a speech model position in the chain.
type Slot string

const (
	// SlotPrimary is tried first: a model specialized for the service's
	// main language family.
	SlotPrimary Slot = "primary"
	// SlotFallback handles whatever the primary cannot.
	SlotFallback Slot = "fallback"
)

// Outcome is the result of one model attempt.
type Outcome string

const (
	// OutcomeSuccess means the model produced a transcription.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure means the model was attempted and failed.
	OutcomeFailure Outcome = "failure"
	// OutcomeUnavailable means the slot was not loaded.
	OutcomeUnavailable Outcome = "unavailable"
)

// Attempt records what one slot did, so "which model answered" and "why
// did we fall through" stay inspectable independent of error messages.
type Attempt struct {
	Slot    Slot
	Outcome Outcome
	Elapsed time.Duration
	Err     error
}
