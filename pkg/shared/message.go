// Package shared holds the message types exchanged over the run WebSocket.
package shared

// MessageType identifies a WebSocket message.
type MessageType string

const (
	MessageTypeRun       MessageType = "run"       // client: execute the attached program
	MessageTypeKeepalive MessageType = "keepalive" // client: no-op, keeps the connection open
	MessageTypeOutput    MessageType = "output"    // server: program output
	MessageTypeError     MessageType = "error"     // server: the request could not be handled
)

// Request is a message sent by the client.
type Request struct {
	Type MessageType `json:"type"`
	Code string      `json:"code,omitempty"`
	// Echoed back so clients can match responses to requests
	ID string `json:"id,omitempty"`
}

// Response is a message sent by the server.
type Response struct {
	Type   MessageType `json:"type"`
	ID     string      `json:"id,omitempty"`
	Output string      `json:"output"`
	Error  string      `json:"error,omitempty"`
}

// NewOutput builds an output response for the request id.
func NewOutput(id, output string) Response {
	return Response{Type: MessageTypeOutput, ID: id, Output: output}
}

// NewError builds an error response for the request id.
func NewError(id, message string) Response {
	return Response{Type: MessageTypeError, ID: id, Error: message}
}
