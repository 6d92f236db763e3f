package protocol

import "errors"

// Sentinel errors for frame parsing.
var (
	// ErrUnknownKind marks a frame whose type is not in KnownKinds.
	ErrUnknownKind = errors.New("unknown frame kind")

	// ErrMalformedFrame marks a frame that is not valid JSON or is
	// missing required fields.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Error codes carried in ResultFrame and surfaced to submitters.
const (
	ErrCodeQueueFull      = "QUEUE_FULL"
	ErrCodeDuplicateAgent = "DUPLICATE_AGENT"
	ErrCodeUnknownAgent   = "UNKNOWN_AGENT"
	ErrCodeInvalidFrame   = "INVALID_FRAME"
)
