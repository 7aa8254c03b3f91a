package cli

import (
	"context"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/attach"
	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/proc"
)

// Process exit statuses. These are stable and scripts may depend on them.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitUsage               = 2
	ExitAttachTimeout       = 100
	ExitInvalidMarker       = 101
	ExitNoSuchProcess       = 200
	ExitRendererUnavailable = 210
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// usageError marks a bad invocation.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case isUsage(err):
		return ExitUsage
	case errors.Is(err, attach.ErrAttachTimeout):
		return ExitAttachTimeout
	case errors.Is(err, attach.ErrInvalidMarker):
		return ExitInvalidMarker
	case errors.Is(err, proc.ErrNoSuchProcess):
		return ExitNoSuchProcess
	case errors.Is(err, display.ErrRenderUnavailable):
		return ExitRendererUnavailable
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	}
	return ExitFailure
}
