package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenRequiresHandler(t *testing.T) {
	_, err := Listen(ListenerConfig{Addr: "127.0.0.1:0"})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestListenerHandsOffConnections(t *testing.T) {
	conns := make(chan *transport.NetConn, 1)
	l, err := Listen(ListenerConfig{
		Addr:        "127.0.0.1:0",
		Socket:      transport.SocketOptions{NoDelay: true},
		ConnHandler: func(c *transport.NetConn) { conns <- c },
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx) }()

	client, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var stream *transport.NetConn
	select {
	case stream = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not handed off")
	}
	_, err = client.Write([]byte("hi"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf))
	require.NoError(t, stream.Close())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.NoError(t, l.Close(), "second close is a no-op")
}
