package delivery

import (
	"context"
	"net/http"

	"github.com/kbukum/streamkit/errors"
)

// ErrorHandler builds a substitute response for a failure that happened
// before any body byte was sent.
type ErrorHandler func(ctx context.Context, failure error) (*Response, error)

// Action is what the policy decided to do with a failure.
type Action int

const (
	// ActionSubstitute runs the application error handler.
	ActionSubstitute Action = iota
	// ActionDefault delivers the default failure response.
	ActionDefault
	// ActionAbort terminates the connection.
	ActionAbort
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionSubstitute:
		return "substitute"
	case ActionDefault:
		return "default"
	case ActionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Action Action
	Reason string
}

// Policy decides between substituting a response and aborting.
type Policy struct {
	// Handler is the application error handler. Nil means the default
	// response is used straight away.
	Handler ErrorHandler
}

// Decide classifies failure. committed reports whether the status line or
// any body byte already went out. attempt counts the substitutions already made
// for this request: the handler gets attempt 0, the default response the
// next one, and anything after that aborts.
func (p Policy) Decide(ctx context.Context, failure error, committed bool, attempt int) Decision {
	switch {
	case committed:
		return Decision{Action: ActionAbort, Reason: "committed"}
	case errors.IsTransportFailure(failure):
		return Decision{Action: ActionAbort, Reason: "transport"}
	case errors.IsClientGone(failure), ctx.Err() != nil:
		return Decision{Action: ActionAbort, Reason: "client_gone"}
	case errors.IsHandlerFailure(failure):
		return Decision{Action: ActionAbort, Reason: "handler"}
	}

	defaultAt := 0
	if p.Handler != nil {
		defaultAt = 1
	}
	switch {
	case attempt < defaultAt:
		return Decision{Action: ActionSubstitute, Reason: "pre_commit"}
	case attempt == defaultAt:
		return Decision{Action: ActionDefault, Reason: "pre_commit"}
	default:
		return Decision{Action: ActionAbort, Reason: "substitute_failed"}
	}
}

// DefaultResponse is the 500-class JSON error sent when no substitute is available.
func DefaultResponse(failure error) *Response {
	appErr := errors.Internal(failure)
	if errors.IsTimeout(failure) {
		appErr = errors.Timeout("delivery").WithCause(failure)
	}
	status := appErr.HTTPStatus
	if status < http.StatusInternalServerError {
		status = http.StatusInternalServerError
	}
	return JSON(status, appErr.ToResponse())
}
