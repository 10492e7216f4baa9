package dispatch

import (
	"errors"

	"github.com/onnwee/streamcast/control"
	"github.com/onnwee/streamcast/roster"
	"github.com/onnwee/streamcast/securestore"
)

var (
	// ErrPermissionDenied means the caller lacks the level the command requires.
	ErrPermissionDenied = roster.ErrPermissionDenied
	// ErrNotFound means a roster mutation targeted a user who is not a moderator.
	ErrNotFound = roster.ErrNotFound
	// ErrControlUnavailable means OBS could not be reached or refused the handshake.
	ErrControlUnavailable = control.ErrUnavailable
	// ErrDecryption means the stored credentials could not be decrypted.
	ErrDecryption = securestore.ErrDecryption
	// ErrPersistence means a roster change was applied in memory but not saved.
	ErrPersistence = errors.New("credentials could not be saved")
	// ErrUnknownCommand is returned for names missing from the command table.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument is returned for a missing scene name or target user.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInternal wraps a recovered handler panic.
	ErrInternal = errors.New("internal error")
)

// ErrorClass groups command failures for logging, metrics and audit.
type ErrorClass int

const (
	// ClassNone is the class of a nil error.
	ClassNone ErrorClass = iota
	ClassPermissionDenied
	ClassNotFound
	// ClassControlUnavailable covers connection and handshake failures.
	ClassControlUnavailable
	// ClassControlRejected means OBS processed the request and refused it.
	ClassControlRejected
	ClassDecryption
	ClassPersistence
	ClassInvalidInput
	ClassInternal
)

// String returns a human-readable name for the error class.
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassPermissionDenied:
		return "permission_denied"
	case ClassNotFound:
		return "not_found"
	case ClassControlUnavailable:
		return "control_unavailable"
	case ClassControlRejected:
		return "control_rejected"
	case ClassDecryption:
		return "decryption"
	case ClassPersistence:
		return "persistence"
	case ClassInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Classify maps an error returned anywhere in the bridge to its class.
// Unrecognised errors are ClassInternal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var rejected *control.RejectedError
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ClassPermissionDenied
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.As(err, &rejected):
		return ClassControlRejected
	case errors.Is(err, ErrControlUnavailable):
		return ClassControlUnavailable
	case errors.Is(err, ErrDecryption):
		return ClassDecryption
	case errors.Is(err, ErrPersistence):
		return ClassPersistence
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnknownCommand):
		return ClassInvalidInput
	default:
		return ClassInternal
	}
}
