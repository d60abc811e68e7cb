// Package dispatch starts generation work on the external processor.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"ugcvideo/internal/domain"
)

// Request is the internal view of a job handed to the external processor.
type Request struct {
	GenerationID string
	UserID       string
	AssetType    domain.AssetType
	Params       domain.GenerationParams
	// WebhookURL is where the processor reports asynchronous progress.
	WebhookURL string
}

// Result is the immediate outcome of a dispatch. Completed is true only when
// the processor ran synchronously and returned the final artifact.
type Result struct {
	Completed   bool
	Output      domain.StageOutput
	ExecutionID string
}

// Dispatcher starts a job on the external processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Result, error)
}

// Error is a classified dispatch failure. Type is decided where the HTTP
// response is inspected and is never re-derived from the message.
type Error struct {
	Type       domain.ErrorType
	StatusCode int
	// Message is safe to show to the user.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("dispatch: %s: status %d: %s", e.Type, e.StatusCode, e.cause())
	}
	return fmt.Sprintf("dispatch: %s: %s", e.Type, e.cause())
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) cause() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// AsError extracts a dispatch failure from err. Unclassified errors are
// reported as service failures.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Type: domain.ErrorTypeService, Message: domain.ErrorTypeService.DefaultMessage(), Err: err}
}

func serviceError(status int, err error) *Error {
	return &Error{Type: domain.ErrorTypeService, StatusCode: status, Message: domain.ErrorTypeService.DefaultMessage(), Err: err}
}

// classifyStatus maps a non-2xx response to a failure type. Request
// validation problems are the caller's fault; anything else is the service's.
func classifyStatus(status int, detail string) *Error {
	switch status {
	case 400, 422:
		msg := detail
		if msg == "" {
			msg = domain.ErrorTypeValidation.DefaultMessage()
		}
		return &Error{Type: domain.ErrorTypeValidation, StatusCode: status, Message: msg, Err: errors.New(detail)}
	}
	return serviceError(status, errors.New(detail))
}
