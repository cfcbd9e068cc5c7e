// Package bridge accepts characteristic updates relayed by a BLE gateway over TCP.
//
// Each request is one line: "<characteristic-uuid> <hex-frame>" or just
// "<hex-frame>". A frame of "-" means the gateway has not received anything
// yet. Each reply is one JSON line: the reading, or {"error": "..."}.
package bridge

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"go.uber.org/zap"
)

// AbsentFrame is the frame token for "no data received yet".
const AbsentFrame = "-"

const maxLineSize = 4096

// TCPServer listens for relayed characteristic updates.
type TCPServer struct {
	addr        string
	defaultUUID string
	processor   *sensor.Processor
	sink        sensor.Sink

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

func NewTCPServer(addr, defaultUUID string, p *sensor.Processor, sink sensor.Sink) *TCPServer {
	if sink == nil {
		sink = sensor.Discard
	}
	return &TCPServer{
		addr:        addr,
		defaultUUID: defaultUUID,
		processor:   p,
		sink:        sink,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Addr returns the bound address once the server is listening.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the listener without serving.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Info("TCP bridge listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Serve accepts connections until ctx is cancelled.
func (s *TCPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("bridge: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		s.closeAll()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logger.Error("Accept error", zap.Error(err))
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// ListenAndServe combines Listen and Serve.
func (s *TCPServer) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *TCPServer) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *TCPServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			logger.Error("Failed to close listener", zap.Error(err))
		}
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		s.track(conn, false)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("Failed to close connection", zap.Error(err))
		}
	}()
	logger.Info("New connection", zap.String("remote_addr", remote))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		uuid, frame, err := s.parseLine(line)
		if err == nil {
			logger.Debug("Received frame", zap.String("uuid", uuid), logger.Hex("frame", frame), zap.String("remote_addr", remote))
			var reading sensor.Reading
			reading, err = s.processor.Process(uuid, frame)
			if err == nil {
				s.sink.Publish(reading)
				err = enc.Encode(reading)
				if err != nil {
					break
				}
				continue
			}
		}

		logger.Warn("Rejected frame", zap.String("remote_addr", remote), zap.String("line", line), zap.Error(err))
		if werr := enc.Encode(map[string]string{"error": err.Error()}); werr != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		logger.Error("Read error", zap.Error(err))
	}
	logger.Info("Connection closed", zap.String("remote_addr", remote))
}

// parseLine splits a request into characteristic UUID and frame bytes.
// A nil frame means the absent frame.
func (s *TCPServer) parseLine(line string) (string, []byte, error) {
	fields := strings.Fields(line)
	uuid := s.defaultUUID
	var payload string
	switch len(fields) {
	case 1:
		payload = fields[0]
	case 2:
		uuid, payload = fields[0], fields[1]
	default:
		return "", nil, fmt.Errorf("expected \"[uuid] <hex>\", got %d fields", len(fields))
	}

	if payload == AbsentFrame {
		return uuid, nil, nil
	}
	payload = strings.TrimPrefix(strings.TrimPrefix(payload, "0x"), "0X")
	frame, err := hex.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return uuid, frame, nil
}
