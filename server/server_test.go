package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, admin bool, opts ...ServerOption) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AdminAddr = ""
	if admin {
		cfg.AdminAddr = "127.0.0.1:0"
	}
	cfg.ExecutorWorkers = 2
	cfg.ShutdownTimeout = time.Second
	opts = append([]ServerOption{WithLogger(zerolog.Nop())}, opts...)
	srv, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	return srv
}

func serve(t *testing.T, srv *Server) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- srv.Serve(ctx) }()
	return cancel, ch
}

func dial(t *testing.T, srv *Server) *net.TCPConn {
	t.Helper()
	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c.(*net.TCPConn)
}

func TestServerEchoesAndShutsDownGracefully(t *testing.T) {
	srv := newTestServer(t, true)
	cancel, done := serve(t, srv)

	c := dial(t, srv)
	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, c.CloseWrite())
	rest, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Empty(t, rest)

	require.Eventually(t, func() bool {
		return srv.Registry().Len() == 0 && srv.Registry().Live() == 0
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.AdminAddr().String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "hioload_echo_session_created_total 1")
	assert.Contains(t, string(body), "hioload_echo_echo_bytes_total 5")
	assert.Contains(t, string(body), `hioload_echo_session_operations_total{op="wait",result="ok"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestShutdownDrainsIdleSessions(t *testing.T) {
	srv := newTestServer(t, false)
	_, done := serve(t, srv)

	c := dial(t, srv)
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, time.Second, 5*time.Millisecond)

	peerDone := make(chan struct{})
	go func() {
		defer close(peerDone)
		_, _ = io.ReadAll(c)
		_ = c.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	<-peerDone

	assert.Equal(t, 0, srv.Registry().Len())
	assert.NoError(t, <-done)
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestShutdownClosesStragglersAtDeadline(t *testing.T) {
	srv := newTestServer(t, false, WithShutdownTimeout(time.Minute))
	_, done := serve(t, srv)

	dial(t, srv)
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, srv.Registry().Len())
	assert.NoError(t, <-done)
}

func TestStartAfterShutdown(t *testing.T) {
	srv, err := New(&Config{ListenAddr: "127.0.0.1:0", ReadBufferSize: 1024}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.ErrorIs(t, srv.Start(), api.ErrServerClosed)
	assert.Nil(t, srv.Addr())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&Config{ListenAddr: ":0"})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
