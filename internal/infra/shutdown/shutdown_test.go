package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Shutdown_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	h.OnShutdown("store", record("store"))
	h.OnShutdown("tracer", record("tracer"))
	h.OnShutdown("http", record("http"))

	select {
	case <-h.Done():
		t.Fatal("done before shutdown")
	default:
	}

	require.NoError(t, h.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "tracer", "store"}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestHandler_Shutdown_RunsAllAndJoinsErrors(t *testing.T) {
	h := NewHandler(time.Second)
	errStore := errors.New("close failed")

	ran := false
	h.OnShutdown("first", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("store", func(context.Context) error { return errStore })

	err := h.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, ran, "hooks after a failure still run")
	assert.ErrorIs(t, err, errStore)
	assert.Contains(t, err.Error(), "shutdown store")

	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "store", he.Name)

	assert.Equal(t, err, h.Shutdown(context.Background()), "second call returns the first result")
}

func TestHandler_Shutdown_Deadline(t *testing.T) {
	h := NewHandler(20 * time.Millisecond)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := h.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandler_Wait(t *testing.T) {
	h := NewHandler(time.Second)
	var called bool
	h.OnShutdown("hook", func(ctx context.Context) error {
		called = true
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "hooks get a live context")
		assert.True(t, called)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestWithSignals(t *testing.T) {
	ctx, stop := WithSignals(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not cancel the context")
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.hooks, 10)
}
