package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		HTTPAddr:    "127.0.0.1:0",
		StoragePath: filepath.Join(t.TempDir(), "tracker.db"),
		JWTSecret:   "test-secret",
	}
}

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = ""
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected error for empty HTTP address")
	}
}

func TestNewServerRequiresJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected error for empty jwt secret")
	}
}

func TestListenAndServeNilServer(t *testing.T) {
	var s *Server
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestRunReturnsInitErrorForInvalidConfig(t *testing.T) {
	err := Run(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "init tracker server") {
		t.Fatalf("error = %v, want init tracker server prefix", err)
	}
}

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
