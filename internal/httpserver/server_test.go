package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNewAppliesOptions(t *testing.T) {
	srv := New(8081, http.NotFoundHandler(), WithWriteTimeout(time.Minute))

	if srv.Addr() != ":8081" {
		t.Fatalf("expected :8081 got %s", srv.Addr())
	}
	if srv.inner.WriteTimeout != time.Minute {
		t.Fatalf("expected write timeout override got %s", srv.inner.WriteTimeout)
	}
	if srv.inner.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("expected default read header timeout got %s", srv.inner.ReadHeaderTimeout)
	}
}

func TestStartReturnsNilAfterShutdown(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	srv.inner.Addr = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after shutdown got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	srv.inner.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	srv.inner.Addr = "256.0.0.1:bad"

	if err := srv.Run(context.Background(), nil); err == nil {
		t.Fatal("expected listen error")
	}
}
