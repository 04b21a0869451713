// Package ipc implements the daemon's control-plane transport: a
// newline-delimited JSON request/response protocol over a Unix domain
// socket. It is adapted from the teacher's gateway package (net/http
// API surface, Start(ctx)/Stop() lifecycle, "one struct per listener"
// shape) but swaps HTTP-over-TCP for raw framed JSON over a Unix
// socket, since the control plane here is a local socket/named pipe
// rather than an HTTP API.
//
// The Windows build (listen_windows.go) documents the named-pipe path
// as an explicit unimplemented stub: this pack carries no named-pipe
// library (e.g. Microsoft/go-winio), and stdlib net has no
// AF_UNIX-equivalent primitive on Windows.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/lsh-sh/lsh/internal/daemon"
)

// Request is one control-plane call, framed as a single JSON line.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request with the same ID.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// ResponseError carries the joberr.Kind classification across the
// wire so clients can branch on it without string matching.
type ResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Handler dispatches one decoded Request to the daemon and returns
// the result value, which the server JSON-encodes to frame back. The
// built-in handlers are defined in dispatch.go.
type Handler func(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error)

// Server listens on a Unix domain socket and serves framed JSON
// requests, one connection-handling goroutine per client.
type Server struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	handlers map[string]Handler

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer constructs a Server bound to d, with the built-in method
// table from dispatch.go.
func NewServer(d *daemon.Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		daemon:   d,
		logger:   logger.With("component", "ipc"),
		handlers: defaultHandlers(),
	}
}

// Serve listens on socketPath (removing any stale socket file first)
// and accepts connections until ctx is canceled.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	if err := removeStaleSocket(socketPath); err != nil {
		return err
	}
	ln, err := listen(socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					s.wg.Wait()
					return nil
				}
				s.logger.Warn("ipc: accept failed", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(Response{Error: &ResponseError{Kind: "invalid_spec", Message: "malformed request: " + err.Error()}})
			continue
		}
		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("ipc: failed to write response", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	h, ok := s.handlers[req.Method]
	if !ok {
		return Response{ID: req.ID, Error: &ResponseError{Kind: "invalid_spec", Message: "unknown method " + req.Method}}
	}
	result, err := h(ctx, s.daemon, req.Params)
	if err != nil {
		return Response{ID: req.ID, Error: toResponseError(err)}
	}
	data, merr := json.Marshal(result)
	if merr != nil {
		return Response{ID: req.ID, Error: &ResponseError{Kind: "io_error", Message: merr.Error()}}
	}
	return Response{ID: req.ID, Result: data}
}
