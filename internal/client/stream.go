package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"huddle/internal/events"
)

// ErrStreamClosed is returned by Next once the connection is gone.
var ErrStreamClosed = errors.New("stream closed")

const writeWait = 10 * time.Second

// Stream is an open realtime connection. Next and Send may be used from
// different goroutines.
type Stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	results chan result
	done    chan struct{}
	once    sync.Once
}

type result struct {
	event events.Event
	err   error
}

// Dial opens the realtime connection. The first event the server sends is
// the chat log.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	target, err := c.socketURL()
	if err != nil {
		return nil, err
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, readAPIError(resp)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	s := &Stream{
		conn:    conn,
		results: make(chan result, 16),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Stream) readLoop() {
	defer close(s.results)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.results <- result{err: err}:
			case <-s.done:
			}
			return
		}
		e, err := events.Decode(frame)
		select {
		case s.results <- result{event: e, err: err}:
		case <-s.done:
			return
		}
	}
}

// Next blocks until the server sends an event, the connection fails or ctx
// ends. A frame that fails to decode is returned as an error and the stream
// stays usable.
func (s *Stream) Next(ctx context.Context) (events.Event, error) {
	select {
	case r, ok := <-s.results:
		if !ok {
			return nil, ErrStreamClosed
		}
		return r.event, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes one event to the server.
func (s *Stream) Send(e events.Event) error {
	frame, err := events.Encode(e)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close ends the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
