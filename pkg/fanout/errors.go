package fanout

import "errors"

var (
	// ErrHubClosed is returned when subscribing to a closed hub.
	ErrHubClosed = errors.New("fanout: hub is closed")

	// ErrEmptyKey is returned when subscribing or publishing without a key.
	ErrEmptyKey = errors.New("fanout: key is required")

	// ErrNilCallback is returned when subscribing without a callback.
	ErrNilCallback = errors.New("fanout: callback is required")

	// ErrBridgeClosed is returned when publishing through a closed bridge.
	ErrBridgeClosed = errors.New("fanout: bridge is closed")
)
