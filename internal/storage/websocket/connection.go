package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/promotion/posecore/pkg/streaming"
)

const (
	outboxSize   = 1024
	maxRedials   = 10
	baseBackoff  = time.Second
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	ackTimeout   = 10 * time.Second
)

var (
	errConnectionClosed = errors.New("websocket connection closed")
	errOutboxFull       = errors.New("websocket outbox full")
)

// connection owns a single socket. One goroutine (run) performs every write
// and every redial; a reader goroutine per socket routes acks to waiters.
type connection struct {
	logger *slog.Logger
	outbox chan []byte
	stop   chan struct{}
	exited chan struct{}
	once   sync.Once

	mu      sync.Mutex
	hello   []byte // replayed after each redial
	target  string
	started bool
	waiters map[string][]chan error
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		logger:  logger,
		outbox:  make(chan []byte, outboxSize),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
		waiters: make(map[string][]chan error),
	}
}

// endpoint appends the shared secret as a query parameter.
func endpoint(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *connection) dial(rawURL, secret string) error {
	target, err := endpoint(rawURL, secret)
	if err != nil {
		return err
	}
	sock, err := c.open(target)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.target = target
	c.started = true
	c.mu.Unlock()

	go c.run(sock)
	return nil
}

func (c *connection) open(target string) (*ws.Conn, error) {
	dialer := ws.Dialer{HandshakeTimeout: writeWait}
	sock, _, err := dialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	return sock, nil
}

func (c *connection) write(sock *ws.Conn, kind int, data []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return sock.WriteMessage(kind, data)
}

// run serves the socket until close, redialing after failures. A message
// whose write failed is carried over to the next socket.
func (c *connection) run(sock *ws.Conn) {
	defer close(c.exited)

	var carry []byte
	for sock != nil {
		unsent, err := c.serve(sock, carry)
		_ = sock.Close()
		if err == nil {
			return
		}
		carry = unsent
		c.logger.Warn("websocket connection lost", "error", err)
		sock = c.redial()
	}
}

func (c *connection) serve(sock *ws.Conn, carry []byte) ([]byte, error) {
	readErr := make(chan error, 1)
	go func() { readErr <- c.readAcks(sock) }()

	if carry != nil {
		if err := c.write(sock, ws.TextMessage, carry); err != nil {
			return carry, err
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.stop:
			closing := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
			_ = c.write(sock, ws.CloseMessage, closing)
			return nil, nil
		case err := <-readErr:
			return nil, err
		case data := <-c.outbox:
			if err := c.write(sock, ws.TextMessage, data); err != nil {
				return data, err
			}
		case <-ping.C:
			if err := c.write(sock, ws.PingMessage, nil); err != nil {
				return nil, err
			}
		}
	}
}

func (c *connection) readAcks(sock *ws.Conn) error {
	for {
		_, msg, err := sock.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("ignoring websocket message", "bytes", len(msg))
			continue
		}
		c.resolve(ack.For)
	}
}

func (c *connection) redial() *ws.Conn {
	c.mu.Lock()
	target, hello := c.target, c.hello
	c.mu.Unlock()

	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-c.stop:
			return nil
		case <-time.After(backoff(attempt)):
		}

		sock, err := c.open(target)
		if err != nil {
			c.logger.Warn("websocket redial failed", "attempt", attempt, "error", err)
			continue
		}
		if hello != nil {
			if err := c.write(sock, ws.TextMessage, hello); err != nil {
				_ = sock.Close()
				continue
			}
		}
		c.logger.Info("websocket reconnected", "attempt", attempt)
		return sock
	}
	c.logger.Error("websocket redial abandoned", "attempts", maxRedials)
	return nil
}

// send queues data for the writer, dropping it when the outbox is full.
func (c *connection) send(data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	default:
		c.logger.Warn("dropping websocket message", "bytes", len(data))
		return false
	}
}

// expect registers a waiter for the next ack of the given message type.
// Acks for one type are matched in send order.
func (c *connection) expect(kind string) chan error {
	wait := make(chan error, 1)
	c.mu.Lock()
	c.waiters[kind] = append(c.waiters[kind], wait)
	c.mu.Unlock()
	return wait
}

func (c *connection) resolve(kind string) {
	c.mu.Lock()
	queue := c.waiters[kind]
	if len(queue) == 0 {
		c.mu.Unlock()
		c.logger.Debug("unexpected ack", "for", kind)
		return
	}
	wait := queue[0]
	c.waiters[kind] = queue[1:]
	c.mu.Unlock()
	wait <- nil
}

func (c *connection) forget(kind string, wait chan error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[kind]
	for i, w := range queue {
		if w == wait {
			c.waiters[kind] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	wait := c.expect(ackFor)
	if !c.send(data) {
		c.forget(ackFor, wait)
		return errOutboxFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-wait:
		return err
	case <-c.stop:
	case <-c.exited:
	case <-timer.C:
		c.forget(ackFor, wait)
		return fmt.Errorf("no %s ack within %s", ackFor, timeout)
	}
	c.forget(ackFor, wait)
	return errConnectionClosed
}

func (c *connection) close() error {
	c.once.Do(func() { close(c.stop) })
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.exited
	}
	return nil
}
