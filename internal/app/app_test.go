package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/order-service/pkg/health"
)

func TestServe_GracefulShutdown(t *testing.T) {
	h := health.New()
	h.SetReady(true)

	mux := http.NewServeMux()
	h.Register(mux)

	a := &App{
		cfg: &Config{Graceful: GracefulConfig{
			ReadinessDelay:  10 * time.Millisecond,
			ShutdownTimeout: time.Second,
		}},
		lg:      zaptest.NewLogger(t),
		health:  h,
		handler: mux,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.False(t, h.IsReady())
	require.NoError(t, a.Close())
}
