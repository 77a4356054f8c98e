package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"sales-dashboard/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{ShutdownTimeout: 2 * time.Second}}
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	httpServer := &http.Server{Addr: "127.0.0.1:0"}
	gs := NewGracefulServer(httpServer, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig())

	var ran atomic.Int32
	gs.RegisterShutdownHook("ok", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	gs.RegisterShutdownHook("broken", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("flush failed")
	})

	listening := make(chan struct{})
	stop := make(chan struct{})
	signals := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.serve(func() error {
			close(listening)
			<-stop
			return http.ErrServerClosed
		}, signals)
	}()

	<-listening
	signals <- syscall.SIGTERM

	err := <-errCh
	close(stop)

	if ran.Load() != 2 {
		t.Errorf("ran %d hooks, want 2", ran.Load())
	}
	if err == nil || !strings.Contains(err.Error(), "shutdown hook broken failed") {
		t.Errorf("expected hook error, got %v", err)
	}
	if gs.Context().Err() == nil {
		t.Error("base context should be cancelled on shutdown")
	}
}

func TestGracefulServer_ServerError(t *testing.T) {
	gs := NewGracefulServer(&http.Server{}, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig())

	err := gs.serve(func() error { return errors.New("address in use") }, make(chan os.Signal))
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Errorf("expected listen error, got %v", err)
	}
	if gs.Context().Err() == nil {
		t.Error("base context should be cancelled when the server stops")
	}
}

func TestGracefulServer_BaseContext(t *testing.T) {
	httpServer := &http.Server{}
	gs := NewGracefulServer(httpServer, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig())

	if httpServer.BaseContext == nil || httpServer.BaseContext(nil) != gs.Context() {
		t.Error("request contexts should derive from the server base context")
	}
}
