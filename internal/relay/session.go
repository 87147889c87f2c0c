package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// session tracks replies awaiting acknowledgement on one connection.
type session struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[uint64]chan SentFrame
	closed  chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:    conn,
		pending: make(map[uint64]chan SentFrame),
		closed:  make(chan struct{}),
	}
}

func (s *session) request(ctx context.Context, f ReplyFrame) (SentFrame, error) {
	ch := make(chan SentFrame, 1)
	s.mu.Lock()
	s.pending[f.Ref] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, f.Ref)
		s.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, s.conn, Envelope{Type: TypeReply, Reply: &f}); err != nil {
		return SentFrame{}, fmt.Errorf("writing %s reply: %w", f.Action, err)
	}

	select {
	case ack := <-ch:
		if ack.Error != "" {
			return ack, fmt.Errorf("relay rejected %s: %s", f.Action, ack.Error)
		}
		return ack, nil
	case <-s.closed:
		return SentFrame{}, ErrDisconnected
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return SentFrame{}, fmt.Errorf("waiting for %s acknowledgement: %w", f.Action, ctx.Err())
		}
		return SentFrame{}, ctx.Err()
	}
}

func (s *session) deliver(ack SentFrame) {
	s.mu.Lock()
	ch, ok := s.pending[ack.Ref]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

func (s *session) shutdown() {
	s.once.Do(func() { close(s.closed) })
}
