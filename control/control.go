// Package control defines the call surface the bridge needs from the
// streaming-production application. The obsws package implements it against
// obs-websocket v5.
package control

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps failures to reach or talk to the control endpoint:
// connection refused, handshake or authentication failure, timeouts.
var ErrUnavailable = errors.New("control endpoint unavailable")

// StreamStatus is the output state of the stream.
type StreamStatus struct {
	Active bool
}

// Client is the synchronous control surface. Every call may fail with an error
// wrapping ErrUnavailable, or with a *RejectedError when the application
// refused the request.
type Client interface {
	GetScenes(ctx context.Context) ([]string, error)
	SetActiveScene(ctx context.Context, name string) error
	GetStreamStatus(ctx context.Context) (StreamStatus, error)
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
}

// RejectedError is returned when the application processed a request and
// refused it (unknown scene, stream already starting, ...). Comment is the
// application's own explanation and is shown to users verbatim.
type RejectedError struct {
	Request string
	Code    int
	Comment string
}

func (e *RejectedError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s rejected (code %d)", e.Request, e.Code)
	}
	return fmt.Sprintf("%s rejected (code %d): %s", e.Request, e.Code, e.Comment)
}
