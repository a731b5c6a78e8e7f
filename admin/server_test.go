// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pbox"
	"github.com/bureau-foundation/pbox/lib/codec"
	"github.com/bureau-foundation/pbox/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSandbox() *pbox.Sandbox { return nil }

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("socket %s did not appear in time", path)
		}
		runtime.Gosched()
	}
}

func sendRequest(t *testing.T, socketPath string, req Request) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", socketPath, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var resp Response
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func startServer(t *testing.T, sandboxFn func() *pbox.Sandbox) (socketPath string, cancel context.CancelFunc, done chan error) {
	t.Helper()

	dir := testutil.SocketDir(t)
	socketPath = filepath.Join(dir, "admin.sock")

	server := NewServer(socketPath, sandboxFn, testLogger())

	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	waitForSocket(t, socketPath)
	return socketPath, cancelFn, done
}

func TestServerStatsNoSandbox(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)
	defer cancel()

	resp := sendRequest(t, socketPath, Request{Action: ActionStats})
	if resp.OK {
		t.Errorf("expected ok=false with no sandbox running, got true")
	}
	if resp.Error == "" {
		t.Error("expected a non-empty error message")
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}

func TestServerListChannelsNoSandbox(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)
	defer cancel()

	resp := sendRequest(t, socketPath, Request{Action: ActionListChannels})
	if resp.OK {
		t.Errorf("expected ok=false with no sandbox running, got true")
	}

	cancel()
	<-done
}

func TestServerUnknownAction(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)
	defer cancel()

	resp := sendRequest(t, socketPath, Request{Action: "reticulate-splines"})
	if resp.OK {
		t.Errorf("expected ok=false for unknown action, got true")
	}

	cancel()
	<-done
}

func TestServerInvalidCBOR(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)
	defer cancel()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte{0xff, 0xfe, 0xfd})
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var resp Response
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.OK {
		t.Errorf("expected ok=false for malformed CBOR, got true")
	}

	cancel()
	<-done
}

func TestServerConcurrentRequests(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)
	defer cancel()

	const concurrency = 10
	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := sendRequest(t, socketPath, Request{Action: ActionStats})
			if resp.OK {
				t.Errorf("expected ok=false, got true")
			}
		}()
	}
	wg.Wait()

	cancel()
	<-done
}

func TestServerGracefulShutdown(t *testing.T) {
	socketPath, cancel, done := startServer(t, noSandbox)

	sendRequest(t, socketPath, Request{Action: ActionStats})
	cancel()

	if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}
