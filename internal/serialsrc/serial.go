// Package serialsrc reads sensor frames from a Baah Box wired over USB serial.
// The box writes fixed-size frames back to back with no delimiter.
package serialsrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// Config describes the serial link.
type Config struct {
	Device string
	Baud   int
	// ReadTimeout in milliseconds; zero blocks until data arrives.
	ReadTimeout int
}

// Open opens a native serial port
func Open(cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", cfg.Baud)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Source feeds frames read from a byte stream into the processor under a
// single characteristic UUID.
type Source struct {
	uuid      string
	frameSize int
	processor *sensor.Processor
	sink      sensor.Sink
}

// NewSource reads frames of frameSize bytes, normally the Size of the
// layout bound to uuid.
func NewSource(uuid string, frameSize int, p *sensor.Processor, sink sensor.Sink) (*Source, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	if sink == nil {
		sink = sensor.Discard
	}
	return &Source{uuid: uuid, frameSize: frameSize, processor: p, sink: sink}, nil
}

// Stream reads frames from r until EOF, a read error, or ctx cancellation.
// A trailing partial frame is dropped.
func (s *Source) Stream(ctx context.Context, r io.Reader) error {
	frame := make([]byte, s.frameSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if _, err := io.ReadFull(r, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		reading, err := s.processor.Process(s.uuid, frame)
		if err != nil {
			logger.Warn("Dropping serial frame", logger.Hex("frame", frame), zap.Error(err))
			continue
		}
		s.sink.Publish(reading)
	}
}

// Run opens the port and streams until ctx is cancelled.
func (s *Source) Run(ctx context.Context, cfg Config) error {
	port, err := Open(cfg)
	if err != nil {
		return err
	}
	logger.Info("Serial port open", zap.String("device", cfg.Device), zap.Int("baud", cfg.Baud), zap.Int("frame_size", s.frameSize))

	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()
	return s.Stream(ctx, port)
}
