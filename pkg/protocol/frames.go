// Package protocol defines the wire format spoken between the AgentIM
// coordinator and agent daemons. Frames are JSON objects discriminated
// by a "type" field. This package is importable by other clients.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame kinds. The client:/server: prefix names the producing side for
// control frames; agent: frames address the scheduling subsystem.
const (
	KindAuth       = "client:auth"
	KindAuthResult = "server:auth"
	KindPing       = "client:ping"
	KindPong       = "server:pong"
	KindWork       = "agent:work"
	KindStop       = "agent:stop"
	KindStatus     = "agent:status"
	KindResult     = "agent:result"
)

// KnownKinds is the registry of frame types the daemon accepts or emits.
// Decode rejects anything else.
var KnownKinds = map[string]bool{
	KindAuth:       true,
	KindAuthResult: true,
	KindPing:       true,
	KindPong:       true,
	KindWork:       true,
	KindStop:       true,
	KindStatus:     true,
	KindResult:     true,
}

// Frame is implemented by every frame struct.
type Frame interface {
	FrameKind() string
}

// AuthFrame carries the bearer token for the connect handshake.
// It is never queued while disconnected: a stale token is worthless.
type AuthFrame struct {
	Type  string `json:"type"` // always "client:auth"
	Token string `json:"token"`
}

func (AuthFrame) FrameKind() string { return KindAuth }

// NewAuth creates an authentication frame.
func NewAuth(token string) AuthFrame {
	return AuthFrame{Type: KindAuth, Token: token}
}

// AuthResultFrame is the coordinator's verdict on a client:auth frame.
type AuthResultFrame struct {
	Type  string `json:"type"` // always "server:auth"
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (AuthResultFrame) FrameKind() string { return KindAuthResult }

// PingFrame is the heartbeat probe. Like auth, it is never queued.
type PingFrame struct {
	Type string `json:"type"` // always "client:ping"
	TS   int64  `json:"ts"`   // unix millis at send time
}

func (PingFrame) FrameKind() string { return KindPing }

// NewPing creates a heartbeat frame with the given timestamp.
func NewPing(ts int64) PingFrame {
	return PingFrame{Type: KindPing, TS: ts}
}

// PongFrame answers a ping, echoing its timestamp.
type PongFrame struct {
	Type string `json:"type"` // always "server:pong"
	TS   int64  `json:"ts"`
}

func (PongFrame) FrameKind() string { return KindPong }

// WorkFrame delivers one unit of work addressed to a named agent.
// ID is the correlation identifier the submitter tracks the item by.
type WorkFrame struct {
	Type    string          `json:"type"` // always "agent:work"
	AgentID string          `json:"agentId"`
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

func (WorkFrame) FrameKind() string { return KindWork }

// StopFrame asks the daemon to clear an agent's queue and abort its
// in-flight work item.
type StopFrame struct {
	Type    string `json:"type"` // always "agent:stop"
	AgentID string `json:"agentId"`
}

func (StopFrame) FrameKind() string { return KindStop }

// StatusFrame reports an agent's scheduling state to remote observers.
type StatusFrame struct {
	Type       string `json:"type"` // always "agent:status"
	AgentID    string `json:"agentId"`
	Status     string `json:"status"` // "online" or "busy"
	QueueDepth int    `json:"queueDepth"`
}

func (StatusFrame) FrameKind() string { return KindStatus }

// Agent status values carried in StatusFrame.
const (
	StatusOnline = "online"
	StatusBusy   = "busy"
)

// NewStatus creates a status frame.
func NewStatus(agentID, status string, queueDepth int) StatusFrame {
	return StatusFrame{Type: KindStatus, AgentID: agentID, Status: status, QueueDepth: queueDepth}
}

// ResultFrame is a terminal completion for a work item. The daemon emits
// it directly when an item is rejected before dispatch (e.g. queue full),
// so the submitter is never left waiting.
type ResultFrame struct {
	Type    string      `json:"type"` // always "agent:result"
	AgentID string      `json:"agentId"`
	ID      string      `json:"id"` // correlation ID of the work item
	OK      bool        `json:"ok"`
	Error   *ErrorShape `json:"error,omitempty"`
}

func (ResultFrame) FrameKind() string { return KindResult }

// NewRejection creates a terminal error result for a work item.
func NewRejection(agentID, id, code, message string) ResultFrame {
	return ResultFrame{
		Type:    KindResult,
		AgentID: agentID,
		ID:      id,
		Error:   &ErrorShape{Code: code, Message: message},
	}
}

// ErrorShape describes a protocol-level error.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseKind extracts the frame type from raw JSON bytes without decoding
// the full frame.
func ParseKind(data []byte) (string, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if raw.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return raw.Type, nil
}

// Decode parses a raw frame into its concrete struct. Frames with an
// unregistered type return ErrUnknownKind; frames that fail validation
// return ErrMalformedFrame. Callers drop both rather than delivering them.
func Decode(data []byte) (Frame, error) {
	kind, err := ParseKind(data)
	if err != nil {
		return nil, err
	}
	if !KnownKinds[kind] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var f Frame
	switch kind {
	case KindAuth:
		f = &AuthFrame{}
	case KindAuthResult:
		f = &AuthResultFrame{}
	case KindPing:
		f = &PingFrame{}
	case KindPong:
		f = &PongFrame{}
	case KindWork:
		f = &WorkFrame{}
	case KindStop:
		f = &StopFrame{}
	case KindStatus:
		f = &StatusFrame{}
	case KindResult:
		f = &ResultFrame{}
	}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch w := f.(type) {
	case *WorkFrame:
		if w.AgentID == "" || w.ID == "" {
			return nil, fmt.Errorf("%w: agent:work requires agentId and id", ErrMalformedFrame)
		}
	case *StopFrame:
		if w.AgentID == "" {
			return nil, fmt.Errorf("%w: agent:stop requires agentId", ErrMalformedFrame)
		}
	}
	return f, nil
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}
