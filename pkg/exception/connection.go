package exception

import "errors"

var (
	ErrConnectionClose      = errors.New("connection closed")
	ErrMaxReconnectRetries  = errors.New("max reconnect retries reached")
	ErrStreamDisconnected   = errors.New("stream: disconnected")
	ErrQueueFull            = errors.New("stream: event queue full")
	ErrQueueClosed          = errors.New("stream: event queue closed")
	ErrUnexpectedStatusCode = errors.New("http: unexpected status code")
)
