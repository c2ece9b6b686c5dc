package consts

import "time"

const (
	// Ring timeout before an unanswered call is marked missed.
	DefaultRingTimeout = 45 * time.Second

	// Call session records are ephemeral signaling artifacts and are
	// reaped this long after creation, terminal or not.
	DefaultSessionTTL = 24 * time.Hour

	ReapInterval = 10 * time.Minute

	PersistRetryAttempts = 3
	PersistRetryBackoff  = 100 * time.Millisecond

	// Path prefix of generated scheduled-call links.
	CallLinkPrefix = "/call/"

	// A stalled peer connection must fail the write, not block the writer.
	SignalWriteTimeout = 10 * time.Second
)

// Signaling message kinds relayed between the two parties of a call.
const (
	SignalCallUser         = "call-user"
	SignalCallRinging      = "call-ringing"
	SignalCallAnswered     = "call-answered"
	SignalCallRejected     = "call-rejected"
	SignalCallEnded        = "call-ended"
	SignalIceCandidate     = "ice-candidate"
	SignalTranscriptUpdate = "transcript:update"
)
