package protocol

import "time"

// Transcript is the running or final transcript broadcast on the bus
// after each commit.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Partial   bool      `json:"partial"`
	Fragments int       `json:"fragments"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionEvent marks the start or end of a dictation session.
type SessionEvent struct {
	SessionID  string    `json:"session_id"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectTranscriptPartial = "dictation.transcript.partial"
	SubjectTranscriptFinal   = "dictation.transcript.final"
	SubjectSessionStarted    = "dictation.session.started"
	SubjectSessionEnded      = "dictation.session.ended"
)
