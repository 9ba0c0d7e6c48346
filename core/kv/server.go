package kv

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server exposes a Client (normally the memory engine) over the
// newline-delimited JSON protocol. One goroutine is spawned per accepted
// connection; requests on a connection are handled in order.
type Server struct {
	engine Client
	logger *zap.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a server around the given engine. logger may be nil.
func NewServer(engine Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger}
}

// Start begins listening on address and serving connections in the
// background. Use Addr to discover the bound address when address has
// port 0.
func (s *Server) Start(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("Server listening", zap.String("address", ln.Addr().String()))
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the listener address, or empty string before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener. In-flight connections finish their current
// request and then fail on the next read.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("Accept failed", zap.Error(err))
			}
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		var req wireRequest
		var resp wireResponse
		if err := json.Unmarshal(line, &req); err != nil {
			resp = wireResponse{Status: statusError, Message: "malformed request: " + err.Error()}
		} else {
			resp = s.dispatch(req)
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("Failed to encode response", zap.Error(err))
			return
		}
		payload = append(payload, '\n')
		if _, err := writer.Write(payload); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// dispatch routes one request to the engine and shapes the response.
func (s *Server) dispatch(req wireRequest) wireResponse {
	switch req.Command {
	case cmdGet:
		res, err := s.engine.Get(req.Key)
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Cas: uint64(res.Cas), Value: res.Value}

	case cmdStore:
		mode, err := parseStoreMode(req.Mode)
		if err != nil {
			return errorResponse(err)
		}
		res, err := s.engine.Store(req.Key, req.Value, mode, StoreOptions{
			Cas:        Cas(req.Cas),
			Expiry:     req.Expiry,
			Flags:      req.Flags,
			Durability: DurabilityLevel(req.Durability),
		})
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Cas: uint64(res.Cas)}

	case cmdRemove:
		res, err := s.engine.Remove(req.Key, RemoveOptions{
			Cas:        Cas(req.Cas),
			Durability: DurabilityLevel(req.Durability),
		})
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Cas: uint64(res.Cas)}

	case cmdCounter:
		res, err := s.engine.Counter(req.Key, req.Delta, CounterOptions{
			Initial:    req.Initial,
			Expiry:     req.Expiry,
			Durability: DurabilityLevel(req.Durability),
		})
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Cas: uint64(res.Cas), Counter: res.Value}

	case cmdTouch:
		res, err := s.engine.Touch(req.Key, req.Expiry)
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Cas: uint64(res.Cas)}

	case cmdUnlock:
		if err := s.engine.Unlock(req.Key, Cas(req.Cas)); err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK}

	case cmdQuery:
		rows, err := s.engine.Query(req.Statement, QueryOptions{Limit: req.Limit})
		if err != nil {
			return errorResponse(err)
		}
		return wireResponse{Status: statusOK, Rows: rows}

	default:
		return wireResponse{Status: statusError, Message: "unknown command " + req.Command}
	}
}

func errorResponse(err error) wireResponse {
	status, message := errToStatus(err)
	return wireResponse{Status: status, Message: message}
}
