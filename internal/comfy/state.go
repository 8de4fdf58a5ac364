package comfy

// State is a step of the submit-and-wait protocol.
type State int

const (
	StateDisconnected State = iota
	StateHTTPProbing
	StateSocketConnecting
	StateSubmitted
	StateAwaiting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHTTPProbing:
		return "http_probing"
	case StateSocketConnecting:
		return "socket_connecting"
	case StateSubmitted:
		return "submitted"
	case StateAwaiting:
		return "awaiting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
