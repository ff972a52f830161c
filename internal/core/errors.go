package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every store and controller. Callers classify with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrRemote         = errors.New("remote failure")
	ErrPartialFailure = errors.New("partial failure")
	ErrNotFound       = errors.New("not found")
	ErrNotConfirmed   = errors.New("action not confirmed")
	ErrBusy           = errors.New("submission already in progress")
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrNothingToRedo  = errors.New("nothing to redo")

	ErrUnauthenticated = errors.New("no active session")

	// ErrCategoryInUse is returned when the backend refuses a category delete
	// because transactions still reference it.
	ErrCategoryInUse = fmt.Errorf("%w: categories referenced by existing transactions cannot be deleted", ErrConflict)
)

// Validation marks err as a ValidationError.
func Validation(err error) error {
	if err == nil || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Remote wraps a backend failure for operation op. Errors the backend already
// classified keep their class.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation),
		errors.Is(err, ErrRemote), errors.Is(err, ErrPartialFailure):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemote, err)
}

// Kind names the taxonomy class of err for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialFailure):
		return "partial_failure"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict_error"
	case errors.Is(err, ErrNotFound):
		return "not_found_error"
	case errors.Is(err, ErrNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, ErrBusy), errors.Is(err, ErrNothingToUndo), errors.Is(err, ErrNothingToRedo):
		return "state_conflict"
	case errors.Is(err, ErrUnauthenticated):
		return "auth_error"
	case errors.Is(err, ErrRemote):
		return "remote_failure"
	}
	return "internal_error"
}
