package bridge

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/id"
)

var (
	ErrPeerClosed = errors.New("bridge: peer closed")
	ErrOutboxFull = errors.New("bridge: outbox full")
)

const (
	// maxMessageSize bounds a single agent message.
	maxMessageSize = 1 << 20
	// outboxSize bounds queued outbound messages before sends report
	// backpressure.
	outboxSize = 64
)

// Peer wraps one agent connection. All writes go through a single writer
// goroutine so concurrent callers never interleave frames.
type Peer struct {
	id     id.ConnID
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	closer sync.Once
	logger *zap.Logger
}

// NewPeer wraps an upgraded connection and starts its writer.
func NewPeer(conn *websocket.Conn, logger *zap.Logger) *Peer {
	p := &Peer{
		id:     id.NewConnID(),
		conn:   conn,
		out:    make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	conn.SetReadLimit(maxMessageSize)
	go p.writeLoop()
	return p
}

// ID returns the connection identifier.
func (p *Peer) ID() id.ConnID {
	return p.id
}

// Send queues a message for delivery. Delivery is fire-and-forget; a full
// outbox or a closed peer is reported to the caller, nothing more.
func (p *Peer) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}

	select {
	case p.out <- data:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		return ErrOutboxFull
	}
}

// ReadLoop reads inbound messages until the connection drops, invoking
// handle for each well-formed message. Malformed frames are logged and
// skipped. Returns after closing the peer.
func (p *Peer) ReadLoop(handle func(Message)) error {
	defer p.Close()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn("agent connection dropped",
					zap.String("conn_id", p.id.String()),
					zap.Error(err),
				)
			}
			return err
		}

		msg, err := Decode(data)
		if err != nil {
			p.logger.Warn("skipping malformed agent message",
				zap.String("conn_id", p.id.String()),
				zap.Error(err),
			)
			continue
		}

		handle(msg)
	}
}

// Close shuts the peer down. Safe to call multiple times.
func (p *Peer) Close() {
	p.closer.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Done is closed once the peer has shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) writeLoop() {
	for {
		select {
		case data := <-p.out:
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Warn("agent write failed",
					zap.String("conn_id", p.id.String()),
					zap.Error(err),
				)
				p.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}
