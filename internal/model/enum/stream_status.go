package enum

// StreamStatus is the connection state of a push stream consumer.
type StreamStatus uint8

const (
	StreamInactive StreamStatus = iota
	StreamStarting
	StreamConnected
	StreamDisconnected
)

func (s StreamStatus) String() string {
	switch s {
	case StreamInactive:
		return "INACTIVE"
	case StreamStarting:
		return "STARTING"
	case StreamConnected:
		return "CONNECTED"
	case StreamDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}
