package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/sydney/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	// frameDelimiter terminates every framed message, inbound and outbound.
	frameDelimiter = "\x1e"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Timeout for the websocket opening handshake.
	dialTimeout = 30 * time.Second
)

// negotiationFrame is the first message sent on every new channel. The server
// answers it with a single (mostly empty) frame before streaming begins.
type negotiationFrame struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// frameQueue is an unbounded FIFO fed by the background reader. A single
// consumer pops frames; no inbound frame is ever dropped because the consumer
// was busy.
type frameQueue struct {
	mu     sync.Mutex
	frames []string
	closed bool
	notify chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{notify: make(chan struct{}, 1)}
}

func (q *frameQueue) push(frame string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a frame is available, the queue is closed, or ctx ends.
func (q *frameQueue) pop(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			frame := q.frames[0]
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return frame, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return "", ErrConnectionClosed
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.notify:
		}
	}
}

// drain discards all queued frames and reports how many were dropped.
func (q *frameQueue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = nil
	return n
}

func (q *frameQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Transport owns one duplex websocket channel. The foreground sends framed
// documents synchronously; one background goroutine reads inbound messages
// and forwards them into the queue. A closed Transport cannot be reopened; a
// new one must be dialed and re-negotiated.
type Transport struct {
	conn    *websocket.Conn
	queue   *frameQueue
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
}

// Dial connects to the chat hub, starts the read pump, and performs the
// protocol negotiation handshake. It returns only after the server has
// acknowledged the negotiation frame.
func Dial(ctx context.Context, wsURL string) (*Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrConnectionClosed, err)
	}

	t := &Transport{
		conn:     conn,
		queue:    newFrameQueue(),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go t.readPump()

	if err := t.Send(negotiationFrame{Protocol: "json", Version: 1}); err != nil {
		t.Close()
		return nil, fmt.Errorf("protocol negotiation failed: %w", err)
	}

	// The server replies with one frame before any chat traffic; its content
	// is not inspected, only its arrival matters.
	if _, err := t.ReceiveNextBatch(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("protocol negotiation failed: %w", err)
	}

	logger.Debug("Channel negotiated: %s", wsURL)
	return t, nil
}

// readPump forwards every inbound text message into the queue. It exits when
// the connection closes or fails, closing the queue so pending receives fail
// instead of hanging.
func (t *Transport) readPump() {
	defer close(t.readDone)
	defer t.queue.close()

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closed:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Error("Channel read error: %v", err)
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Warn("Ignoring non-text message (type %d)", msgType)
			continue
		}
		t.queue.push(string(data))
	}
}

// Send serializes the document, appends the frame delimiter, and writes it to
// the channel. It fails with ErrConnectionClosed once the channel is closed.
func (t *Transport) Send(doc any) error {
	select {
	case <-t.closed:
		return ErrConnectionClosed
	default:
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal outbound frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, append(payload, frameDelimiter...)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionClosed, err)
	}
	return nil
}

// ReceiveNextBatch blocks until the next inbound message arrives. The
// returned text may pack several delimiter-separated documents.
func (t *Transport) ReceiveNextBatch(ctx context.Context) (string, error) {
	return t.queue.pop(ctx)
}

// Drain discards any inbound messages that were queued but never consumed.
func (t *Transport) Drain() {
	if n := t.queue.drain(); n > 0 {
		logger.Debug("Discarded %d unread frames", n)
	}
}

// Close tears the channel down. It is idempotent and safe to call while a
// receive is blocked; the receive fails with ErrConnectionClosed.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)

		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()

		_ = t.conn.Close()
		<-t.readDone
	})
	return nil
}
