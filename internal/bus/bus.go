// Package bus connects to the orchestration daemon's ZeroMQ endpoints: a SUB
// socket for hook events and a REQ socket for execution reports.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/events"
)

const dialRetry = time.Second

// ErrClosed is returned by operations on a closed socket.
var ErrClosed = errors.New("bus socket closed")

// Subscriber receives hook events from the publish-subscribe endpoint.
type Subscriber struct {
	endpoint string
	sock     zmq4.Socket
	cancel   context.CancelFunc
}

// DialSubscriber connects a SUB socket to endpoint. No filters are active
// until Subscribe is called.
func DialSubscriber(ctx context.Context, endpoint string) (*Subscriber, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(dialRetry))

	if err := sock.Dial(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("dialing subscriber %s: %w", endpoint, err)
	}

	log.Info().Str("endpoint", endpoint).Msg("Subscriber connected")

	return &Subscriber{endpoint: endpoint, sock: sock, cancel: cancel}, nil
}

// Subscribe adds an exact filter.
func (s *Subscriber) Subscribe(filter string) error {
	if err := s.sock.SetOption(zmq4.OptionSubscribe, filter); err != nil {
		return fmt.Errorf("subscribing to %q: %w", filter, err)
	}
	log.Debug().Str("filter", filter).Msg("Subscribed")
	return nil
}

// Unsubscribe removes a filter added by Subscribe.
func (s *Subscriber) Unsubscribe(filter string) error {
	if err := s.sock.SetOption(zmq4.OptionUnsubscribe, filter); err != nil {
		return fmt.Errorf("unsubscribing from %q: %w", filter, err)
	}
	log.Debug().Str("filter", filter).Msg("Unsubscribed")
	return nil
}

// Recv blocks until the next message arrives or the subscriber is closed.
// The first frame is the topic, the second the wire-encoded payload.
func (s *Subscriber) Recv() (events.Message, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return events.Message{}, fmt.Errorf("receiving event: %w", err)
	}

	switch len(msg.Frames) {
	case 0:
		return events.Message{}, nil
	case 1:
		return events.Message{Topic: string(msg.Frames[0])}, nil
	default:
		return events.Message{
			Topic:   string(msg.Frames[0]),
			Payload: string(msg.Frames[1]),
		}, nil
	}
}

// Close releases the socket and unblocks a pending Recv.
func (s *Subscriber) Close() error {
	s.cancel()
	return s.sock.Close()
}

// Requester performs request-reply exchanges with the report endpoint. The
// underlying REQ socket allows exactly one outstanding request; callers
// serialize access.
type Requester struct {
	endpoint string
	sock     zmq4.Socket
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// DialRequester connects a REQ socket to endpoint.
func DialRequester(ctx context.Context, endpoint string) (*Requester, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewReq(ctx, zmq4.WithDialerRetry(dialRetry))

	if err := sock.Dial(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("dialing requester %s: %w", endpoint, err)
	}

	log.Info().Str("endpoint", endpoint).Msg("Requester connected")

	return &Requester{endpoint: endpoint, sock: sock, cancel: cancel}, nil
}

// Request sends data and waits for the reply. If ctx ends first the
// exchange is abandoned and the socket must be considered unusable.
func (r *Requester) Request(ctx context.Context, data []byte) ([]byte, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	type result struct {
		reply []byte
		err   error
	}
	done := make(chan result, 1)

	go func() {
		if err := r.sock.Send(zmq4.NewMsg(data)); err != nil {
			done <- result{err: fmt.Errorf("sending request: %w", err)}
			return
		}
		msg, err := r.sock.Recv()
		if err != nil {
			done <- result{err: fmt.Errorf("receiving reply: %w", err)}
			return
		}
		done <- result{reply: msg.Bytes()}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.reply, res.err
	}
}

// Close releases the socket.
func (r *Requester) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	return r.sock.Close()
}
