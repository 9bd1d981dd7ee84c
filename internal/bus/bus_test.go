package bus

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, sock zmq4.Socket) string {
	t.Helper()

	require.NoError(t, sock.Listen("tcp://127.0.0.1:0"))
	t.Cleanup(func() { _ = sock.Close() })

	return "tcp://" + sock.Addr().String()
}

func TestRequester_Request(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := zmq4.NewRep(ctx)
	endpoint := listen(t, rep)

	go func() {
		for {
			msg, err := rep.Recv()
			if err != nil {
				return
			}
			if string(msg.Bytes()) == "0 1 UkVTVUxU" {
				_ = rep.Send(zmq4.NewMsgString("ACK"))
			} else {
				_ = rep.Send(zmq4.NewMsgString("NACK"))
			}
		}
	}()

	req, err := DialRequester(ctx, endpoint)
	require.NoError(t, err)
	defer req.Close()

	reply, err := req.Request(ctx, []byte("0 1 UkVTVUxU"))
	require.NoError(t, err)
	require.Equal(t, "ACK", string(reply))

	reply, err = req.Request(ctx, []byte("garbage"))
	require.NoError(t, err)
	require.Equal(t, "NACK", string(reply))
}

func TestRequester_RequestTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := zmq4.NewRep(ctx)
	endpoint := listen(t, rep)
	// The replier never answers.

	req, err := DialRequester(ctx, endpoint)
	require.NoError(t, err)
	defer req.Close()

	reqCtx, reqCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer reqCancel()

	_, err = req.Request(reqCtx, []byte("0 1 x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequester_Closed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := zmq4.NewRep(ctx)
	endpoint := listen(t, rep)

	req, err := DialRequester(ctx, endpoint)
	require.NoError(t, err)
	require.NoError(t, req.Close())

	_, err = req.Request(ctx, []byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSubscriber_Recv(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := zmq4.NewPub(ctx)
	endpoint := listen(t, pub)

	sub, err := DialSubscriber(ctx, endpoint)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sub.Subscribe("API one.vm.allocate 1"))

	received := make(chan string, 1)
	go func() {
		msg, err := sub.Recv()
		if err != nil {
			return
		}
		received <- msg.Topic + "|" + msg.Payload
	}()

	// PUB drops messages until the subscription has propagated.
	require.Eventually(t, func() bool {
		_ = pub.Send(zmq4.NewMsgFrom([]byte("API one.vm.allocate 1"), []byte("UEFZTE9BRA==")))
		select {
		case got := <-received:
			require.Equal(t, "API one.vm.allocate 1|UEFZTE9BRA==", got)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
