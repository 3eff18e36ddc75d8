package geolocate

import (
	"errors"
	"fmt"
)

// Kind is the closed set of position acquisition failures.
type Kind string

const (
	KindPermissionDenied    Kind = "permission_denied"
	KindPositionUnavailable Kind = "position_unavailable"
	KindTimeout             Kind = "timeout"
)

// Error is returned by Acquire and by Locator implementations.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocate: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("geolocate: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the user-facing explanation for the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Location permission denied. Enable location access in your settings."
	case KindPositionUnavailable:
		return "Your location is unavailable right now."
	case KindTimeout:
		return "Timed out while acquiring your location."
	default:
		return "Could not determine your location."
	}
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
