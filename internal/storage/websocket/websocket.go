package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/promotion/posecore/pkg/core"
	"github.com/promotion/posecore/pkg/streaming"
)

// ClientName identifies this client in the hello message.
const ClientName = "posecore"

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session results and saved references over WebSocket to a
// coaching server. References are never pulled from the server, so
// LoadReferences returns none. It implements storage.Backend but not
// storage.Uploadable.
type Backend struct {
	conn            *connection
	cfg             Config
	nextReferenceID atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server and announces the client.
func (b *Backend) Init() error {
	hello, err := marshalEnvelope(streaming.TypeHello, streaming.HelloPayload{
		Client:   ClientName,
		Protocol: streaming.ProtocolVersion,
	})
	if err != nil {
		return err
	}
	b.conn.mu.Lock()
	b.conn.hello = hello
	b.conn.mu.Unlock()

	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}
	b.conn.send(hello)
	return nil
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// LoadReferences returns no references; the server does not serve them.
func (b *Backend) LoadReferences() ([]core.Reference, error) {
	return nil, nil
}

// SaveReference assigns an auto-increment ID and sends the reference.
func (b *Backend) SaveReference(ref *core.Reference) error {
	if ref.ID == 0 {
		ref.ID = uint(b.nextReferenceID.Add(1))
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	return b.sendEnvelope(streaming.TypeReferenceSaved, streaming.ReferencePayload{
		ID:        ref.ID,
		Sport:     ref.Sport,
		Action:    ref.Action,
		Blob:      ref.Blob,
		UpdatedAt: ref.UpdatedAt,
	})
}

// RecordSession sends the session summary and waits for the server ack.
func (b *Backend) RecordSession(rec *core.SessionRecord) error {
	return b.sendEnvelopeAndWait(streaming.TypeSessionResult, streaming.NewSessionResultPayload(rec))
}
