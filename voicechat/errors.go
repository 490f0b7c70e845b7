package voicechat

import "errors"

// ErrNotConnected is returned when a send is attempted before the
// transport is open. Sends are never silently queued or dropped.
var ErrNotConnected = errors.New("transport not connected")

// ErrTransportClosed indicates the connection was closed unexpectedly.
// The session stays usable; the next toggle dials a fresh connection.
var ErrTransportClosed = errors.New("transport closed")
