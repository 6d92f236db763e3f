package gateway

// Status is the connection's externally observable state. Exactly one
// value is current at a time; subscribers see each change exactly once.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)
