// Package rpc provides a lightweight JSON-over-TCP RPC framework used by the
// problemctl CLI and other internal callers.
//
// Protocol: newline-delimited JSON over a persistent TCP connection. Each
// request carries a method name ("Service.Method"), an id and raw params;
// each response echoes the id and carries either data or an error with a
// machine-readable code.
//
// Example server:
//
//	s := rpc.NewServer()
//	s.Register("ProblemService.Search", func(ctx context.Context, req json.RawMessage) (any, error) {
//	    var searchReq proto.SearchRequest
//	    json.Unmarshal(req, &searchReq)
//	    return &proto.SearchResponse{...}, nil
//	})
//	s.Serve(":9100")
//
// Example client:
//
//	c, _ := rpc.Dial(ctx, "localhost:9100")
//	var resp proto.SearchResponse
//	c.Call(ctx, "ProblemService.Search", &proto.SearchRequest{Query: "sum"}, &resp)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Codes carried in Error.Code.
const (
	CodeUnknownMethod = "unknown_method"
	CodeInternal      = "internal"
)

// Error is a failure reported by the remote side.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Code, e.Message)
}

// ErrorCoder classifies a handler error into a wire code.
type ErrorCoder func(err error) string

type Server struct {
	handlers map[string]HandlerFunc
	coder    ErrorCoder
	timeout  time.Duration
	listener net.Listener
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

type ServerOption func(*Server)

// WithErrorCoder sets how handler errors are classified. The default marks
// every error CodeInternal.
func WithErrorCoder(c ErrorCoder) ServerOption { return func(s *Server) { s.coder = c } }

// WithRequestTimeout bounds each handler call.
func WithRequestTimeout(d time.Duration) ServerOption { return func(s *Server) { s.timeout = d } }

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		coder:    func(error) string { return CodeInternal },
		logger:   slog.Default().With("component", "rpc-server"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a handler for the given "Service.Method" name.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve listens on addr and blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts connections on ln until Stop is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	methods := len(s.handlers)
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String(), "methods", methods)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()

	resp := Response{ID: req.ID}
	if !exists {
		resp.Error = &Error{Code: CodeUnknownMethod, Message: req.Method}
		return resp
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	data, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = &Error{Code: s.coder(err), Message: err.Error()}
	} else {
		resp.Data = data
	}
	s.logger.Debug("rpc handled",
		"method", req.Method,
		"id", req.ID,
		"ok", err == nil,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return resp
}

// Stop closes the listener and waits for open connections to drain.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.RLock()
		ln := s.listener
		s.mu.RUnlock()
		if ln != nil {
			ln.Close()
		}
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
