package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foodfortalk/talk-service/internal/observability"
	"github.com/foodfortalk/talk-service/internal/protocol"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Application close codes (4000-4999 are free for application use).
const (
	CloseUnauthenticated = 4401
	CloseForbidden       = 4403
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsConn owns the outbound half of one WebSocket. Send never blocks: events
// go to a bounded queue drained by writeLoop, the only goroutine writing to
// the socket. A peer that cannot keep up is disconnected.
//
// Until Start is called events are held back, so the handshake events are
// always the first ones a client receives.
type wsConn struct {
	id            string
	participantID string
	ws            *websocket.Conn
	send          chan protocol.ServerEvent
	quit          chan struct{}
	done          chan struct{}
	writeWait     time.Duration
	pingEvery     time.Duration
	metrics       *observability.Metrics

	mu      sync.Mutex
	ready   bool
	pending []protocol.ServerEvent

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWsConn(ws *websocket.Conn, participantID string, buffer int, writeWait, pingEvery time.Duration, metrics *observability.Metrics) *wsConn {
	return &wsConn{
		id:            uuid.NewString(),
		participantID: participantID,
		ws:            ws,
		send:          make(chan protocol.ServerEvent, buffer),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		writeWait:     writeWait,
		pingEvery:     pingEvery,
		metrics:       metrics,
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues ev for delivery.
func (c *wsConn) Send(ev protocol.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		if len(c.pending) >= cap(c.send) {
			c.overflow()
			return errSendBufferFull
		}
		c.pending = append(c.pending, ev)
		return nil
	}
	return c.enqueueLocked(ev)
}

// Start queues the handshake events followed by everything held back so far
// and opens the connection for regular delivery.
func (c *wsConn) Start(first ...protocol.ServerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range append(first, c.pending...) {
		if err := c.enqueueLocked(ev); err != nil {
			break
		}
	}
	c.pending = nil
	c.ready = true
}

func (c *wsConn) enqueueLocked(ev protocol.ServerEvent) error {
	select {
	case <-c.quit:
		c.metrics.Dropped()
		return errConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		c.overflow()
		return errSendBufferFull
	}
}

func (c *wsConn) overflow() {
	c.metrics.Dropped()
	slog.Warn("ws send buffer full, disconnecting", logger.ConnID(c.id), logger.Participant(c.participantID))
	c.closeWith(websocket.CloseTryAgainLater, "send buffer full")
}

// Close asks the writer to send a close frame and shut the socket down.
func (c *wsConn) Close(reason string) {
	c.closeWith(websocket.CloseGoingAway, reason)
}

func (c *wsConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.quit)
	})
}

// writeLoop drains the queue and pings the peer until the connection is
// closed. It closes the socket on exit, which also ends the read loop.
func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				slog.Debug("ws write failed", logger.ConnID(c.id), logger.Err(err))
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.quit:
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
			}
			return
		}
	}
}

func (c *wsConn) write(ev protocol.ServerEvent) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(ev)
}

// rejectConn closes a freshly upgraded socket that never became a session.
func rejectConn(ws *websocket.Conn, code int, reason string, writeWait time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}
