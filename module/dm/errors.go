package dm

import (
	"errors"

	"github.com/tinayla696/iotp_client_golang/module/topic"
)

var (
	// ErrBadRequest is returned when a management request violates a
	// precondition. The platform has already been answered with rc 400.
	ErrBadRequest = errors.New("dm: bad request")

	// ErrInvalidRequestID is returned when a request carries the client's
	// own outstanding request id.
	ErrInvalidRequestID = errors.New("dm: invalid request id")

	// ErrNotSupported is returned when an action has no handler or the
	// device does not advertise support for it. The platform has already
	// been answered with rc 501.
	ErrNotSupported = errors.New("dm: action not supported")

	// ErrInvalidValue is returned by SetAttribute for unknown names or
	// unparsable values.
	ErrInvalidValue = topic.ErrInvalidValue
)
