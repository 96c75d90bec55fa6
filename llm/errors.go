package llm

import (
	"context"
	"errors"

	"github.com/shalynjjj/prompt2CAD/types"
)

// CollaboratorError converts a provider failure into a service error.
// The upstream message is kept verbatim; context expiry maps to ErrTimeout.
func CollaboratorError(provider string, err error) *types.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, err.Error()).WithCause(err).WithProvider(provider)
	}
	if te, ok := types.AsError(err); ok {
		return te
	}
	msg := err.Error()
	retryable := false
	var le *Error
	if errors.As(err, &le) {
		msg = le.Message
		retryable = le.Retryable
	}
	return types.NewError(types.ErrCollaboratorFailure, msg).
		WithCause(err).
		WithRetryable(retryable).
		WithProvider(provider)
}
