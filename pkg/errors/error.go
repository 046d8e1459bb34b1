// Package errors contains domain errors that the different layers can use to
// add meaning to an error and that the entrypoints can transform to a status
// code or a retry decision. This is implemented as a separate package in order
// to avoid cycle import errors.
package errors

import (
	"errors"
	"fmt"
)

// The following errors serve as domain errors that can be used by the
// different layers. The HTTP handlers intercept these and convert them to the
// relevant response codes; the worker converts them to retryable or
// non-retryable activity failures.
var (
	// ErrInvalidArgument is used when the provided argument is incorrect
	// (e.g. format, reserved).
	ErrInvalidArgument = fmt.Errorf("invalid")
	// ErrNotFound is used when a resource doesn't exist.
	ErrNotFound = fmt.Errorf("not found")
	// ErrAlreadyProcessing is used when an enrichment run is requested for a
	// listing that is already owned by an active workflow.
	ErrAlreadyProcessing = AddMessage(
		fmt.Errorf("enrichment already running"),
		"This listing is already being processed. Wait for the current run to finish or cancel it first.",
	)
	// ErrInvalidTransition is used when a processing status transition is not
	// allowed from the listing's current state.
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	// ErrNoImage is used when a listing has no image to analyze. This is a
	// permanent condition, not worth retrying.
	ErrNoImage = AddMessage(
		fmt.Errorf("no image available"),
		"The listing has no images. Upload at least one image before starting enrichment.",
	)
	// ErrUnauthorized is used when a request can't be performed due to
	// insufficient permissions.
	ErrUnauthorized = fmt.Errorf("unauthorized")
)

// messageErr decorates an error with an end-user message while keeping the
// original error in the unwrap chain.
type messageErr struct {
	cause   error
	message string
}

func (e *messageErr) Error() string { return e.cause.Error() }
func (e *messageErr) Unwrap() error { return e.cause }

// AddMessage attaches an end-user message to an error. The message of the
// outermost decorated error wins.
func AddMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &messageErr{cause: err, message: message}
}

// Message extracts the outermost end-user message from an error chain. It
// returns an empty string when no message was attached.
func Message(err error) string {
	for err != nil {
		if me, ok := err.(*messageErr); ok {
			return me.message
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// MessageOrErr returns the end-user message of an error, falling back to the
// error string when none was attached.
func MessageOrErr(err error) string {
	if err == nil {
		return ""
	}
	if msg := Message(err); msg != "" {
		return msg
	}
	return err.Error()
}
