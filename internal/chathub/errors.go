package chathub

import "errors"

// Sentinel errors returned by the chathub package. Callers should match them
// with errors.Is; most are returned wrapped with additional detail.
var (
	// ErrConnectionClosed indicates the websocket channel failed or was closed
	// while an operation was still using it.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotConnected is returned when an operation requires an open session
	// but the session has already been closed.
	ErrNotConnected = errors.New("not connected")

	// ErrMalformedFrame indicates the server sent structurally unexpected data.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrBootstrapFailed indicates the conversation-create handshake did not
	// report success or did not supply the required identifiers.
	ErrBootstrapFailed = errors.New("conversation bootstrap failed")

	// ErrTurnOutstanding is returned by Ask when the previous question has not
	// yet produced its terminal event.
	ErrTurnOutstanding = errors.New("previous turn still awaiting response")

	// ErrEndOfResponse signals that no more events remain for the current
	// turn. It is normal loop termination, not a failure.
	ErrEndOfResponse = errors.New("end of response")

	// ErrThrottled indicates the per-conversation message limit was reached.
	ErrThrottled = errors.New("max messages count limit reached")

	// ErrChallengeRequired indicates the service demands a captcha challenge
	// before it will answer.
	ErrChallengeRequired = errors.New("captcha challenge required")

	// ErrThrottlingError indicates a generic service-side throttling result.
	ErrThrottlingError = errors.New("throttled by service")
)
