package sink

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verbatimlabs/verbatim/internal/protocol"
)

// Bus publishes transcript updates to NATS so other local components can
// follow the dictation live. Publish failures on partials are logged and
// dropped; a later partial or the final carries the full text anyway.
type Bus struct {
	conn      *nats.Conn
	sessionID string
	log       *slog.Logger
	fragments int
}

func NewBus(conn *nats.Conn, sessionID string, log *slog.Logger) *Bus {
	return &Bus{conn: conn, sessionID: sessionID, log: log}
}

func (b *Bus) Partial(full string) {
	b.fragments++
	b.publish(protocol.SubjectTranscriptPartial, full, true)
}

func (b *Bus) Final(full string) error {
	b.publish(protocol.SubjectTranscriptFinal, full, false)
	return nil
}

func (b *Bus) publish(subject, text string, partial bool) {
	msg := protocol.Transcript{
		SessionID: b.sessionID,
		Text:      text,
		Partial:   partial,
		Fragments: b.fragments,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Warn("failed to marshal transcript", slog.String("error", err.Error()))
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.log.Warn("failed to publish transcript", slog.String("error", err.Error()))
	}
}
