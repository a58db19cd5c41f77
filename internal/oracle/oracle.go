// Package oracle is the boundary to the external scoring service. A Client
// receives a prompt plus a declared output shape and returns the raw
// structured payload, or an *Error describing why it could not.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is a single inference call.
type Request struct {
	// Stage identifies the caller for logging, metrics and script dispatch.
	Stage string
	// System is the fixed role instruction for the stage.
	System string
	// Prompt is the rendered user prompt.
	Prompt string
	// Data carries the stage inputs in structured form. Prompt-driven
	// back-ends ignore it; the script back-end scores from it.
	Data any
	// Shape declares the expected response.
	Shape *Shape
}

// Client performs inference calls.
type Client interface {
	Infer(ctx context.Context, req Request) (json.RawMessage, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Infer calls f.
func (f ClientFunc) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Kind classifies oracle failures.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindTimeout    Kind = "timeout"
	KindValidation Kind = "validation"
)

var (
	ErrTransport  = errors.New("oracle: transport failure")
	ErrTimeout    = errors.New("oracle: timeout")
	ErrValidation = errors.New("oracle: response failed validation")
)

// Error is returned for every failed inference. errors.Is matches the
// sentinel of its Kind; Unwrap exposes the underlying cause.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("oracle %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("oracle %s error in %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTimeout) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// Transport wraps err as a transport failure.
func Transport(stage string, err error) *Error {
	return &Error{Kind: KindTransport, Stage: stage, Err: err}
}

// Timeout wraps err as a timeout.
func Timeout(stage string, err error) *Error {
	return &Error{Kind: KindTimeout, Stage: stage, Err: err}
}

// Validation wraps err as a validation failure.
func Validation(stage string, err error) *Error {
	return &Error{Kind: KindValidation, Stage: stage, Err: err}
}

// Classify converts an arbitrary client error into an *Error. Errors that
// already carry a kind are returned unchanged; deadline expiry becomes a
// timeout; everything else is treated as transport.
func Classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		if oe.Stage == "" {
			clone := *oe
			clone.Stage = stage
			return &clone
		}
		return oe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(stage, err)
	}
	return Transport(stage, err)
}
