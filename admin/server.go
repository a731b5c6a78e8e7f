// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/pbox"
	"github.com/bureau-foundation/pbox/lib/codec"
	"github.com/bureau-foundation/pbox/lib/netutil"
)

// readTimeout bounds how long a connection may take to send its request.
const readTimeout = 30 * time.Second

// writeTimeout bounds how long a connection may take to receive its response.
const writeTimeout = 10 * time.Second

// maxRequestSize caps a single CBOR request; this protocol has no
// field anywhere near this large, so anything bigger is malformed or
// hostile.
const maxRequestSize = 64 * 1024

// Server serves the admin protocol on a Unix socket. The sandbox is
// resolved lazily via sandboxFn on every request, since cmd/pbox-hostd
// may not have created it yet (or may have destroyed and recreated
// it) at the time a given connection arrives; sandboxFn may return nil.
type Server struct {
	socketPath string
	sandboxFn  func() *pbox.Sandbox
	logger     *slog.Logger

	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, sandboxFn func() *pbox.Sandbox, logger *slog.Logger) *Server {
	return &Server{socketPath: socketPath, sandboxFn: sandboxFn, logger: logger}
}

// Serve accepts connections on the admin socket until ctx is
// cancelled, then stops accepting and waits for in-flight requests to
// finish before returning.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("admin: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("admin: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("admin socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("admin: accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection services exactly one request-response cycle, then
// closes the connection -- there is nothing about this protocol that
// benefits from a persistent connection, and closing after every
// request keeps a slow or hung client from starving the listener.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()[:8]
	logger := s.logger.With("conn_id", connID)

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, logger, fmt.Sprintf("invalid request: %v", err))
		return
	}

	sandbox := s.sandboxFn()

	switch req.Action {
	case ActionStats:
		s.handleStats(conn, logger, sandbox)
	case ActionListChannels:
		s.handleListChannels(conn, logger, sandbox)
	default:
		s.writeError(conn, logger, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *Server) handleStats(conn net.Conn, logger *slog.Logger, sandbox *pbox.Sandbox) {
	if sandbox == nil {
		s.writeError(conn, logger, "no sandbox is running")
		return
	}
	st := sandbox.Stats()
	s.writeSuccess(conn, logger, StatsResponse{
		PID:           st.PID,
		Alive:         st.Alive,
		CallerCount:   st.CallerCount,
		CallbackCount: st.CallbackCount,
	})
}

func (s *Server) handleListChannels(conn net.Conn, logger *slog.Logger, sandbox *pbox.Sandbox) {
	if sandbox == nil {
		s.writeError(conn, logger, "no sandbox is running")
		return
	}
	infos := sandbox.ListChannels()
	channels := make([]ChannelStatus, len(infos))
	for i, info := range infos {
		channels[i] = ChannelStatus{State: info.State.String()}
	}
	s.writeSuccess(conn, logger, ListChannelsResponse{Channels: channels})
}

func (s *Server) writeError(conn net.Conn, logger *slog.Logger, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil && !netutil.IsExpectedCloseError(err) {
		logger.Debug("admin: failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, logger *slog.Logger, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	data, err := codec.Marshal(result)
	if err != nil {
		s.writeError(conn, logger, fmt.Sprintf("internal: marshaling response: %v", err))
		return
	}

	if err := codec.NewEncoder(conn).Encode(Response{OK: true, Data: data}); err != nil && !netutil.IsExpectedCloseError(err) {
		logger.Debug("admin: failed to write success response", "error", err)
	}
}
