// Package ble subscribes to the sensor characteristic of a Baah Box and
// feeds every notification into the sensor pipeline.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned when the box does not expose the configured service or characteristic.
var ErrNotFound = errors.New("not found on device")

// Config names the peripheral and the GATT endpoint carrying sensor frames.
type Config struct {
	DeviceName     string
	Service        string
	Characteristic string
	// RetryDelay is how long to wait before scanning again after a failed connection or a dropped link.
	RetryDelay time.Duration
}

// Central manages the BLE connection to one sensor box.
type Central struct {
	adapter   *bluetooth.Adapter
	cfg       Config
	processor *sensor.Processor
	sink      sensor.Sink
	log       *zap.Logger

	mu         sync.Mutex
	address    string
	disconnect func() error
	lost       chan struct{}
}

func NewCentral(cfg Config, p *sensor.Processor, sink sensor.Sink) *Central {
	if sink == nil {
		sink = sensor.Discard
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Central{
		adapter:   bluetooth.DefaultAdapter,
		cfg:       cfg,
		processor: p,
		sink:      sink,
		log:       logger.Named("ble"),
		lost:      make(chan struct{}, 1),
	}
}

// Run connects to the box and streams notifications until ctx is cancelled.
// Failed connection attempts and dropped links are retried after RetryDelay.
func (c *Central) Run(ctx context.Context) error {
	serviceUUID, err := bluetooth.ParseUUID(c.cfg.Service)
	if err != nil {
		return fmt.Errorf("service UUID %q: %w", c.cfg.Service, err)
	}
	charUUID, err := bluetooth.ParseUUID(c.cfg.Characteristic)
	if err != nil {
		return fmt.Errorf("characteristic UUID %q: %w", c.cfg.Characteristic, err)
	}

	c.log.Info("Enabling adapter")
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}
	c.adapter.SetConnectHandler(func(device bluetooth.Address, connected bool) {
		if !connected {
			c.onDisconnect(device.String())
		}
	})

	for {
		if err := c.connect(ctx, serviceUUID, charUUID); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("Connection attempt failed", zap.Error(err), zap.Duration("retry_delay", c.cfg.RetryDelay))
		} else {
			select {
			case <-ctx.Done():
				return c.Disconnect()
			case <-c.lost:
				c.log.Warn("Sensor box disconnected, reconnecting", zap.Duration("retry_delay", c.cfg.RetryDelay))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

// onDisconnect signals Run when the connected box drops the link.
func (c *Central) onDisconnect(address string) {
	c.mu.Lock()
	current := c.address != "" && c.address == address
	if current {
		c.address = ""
		c.disconnect = nil
	}
	c.mu.Unlock()

	if !current {
		return
	}
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// Disconnect drops the current connection, if any.
func (c *Central) Disconnect() error {
	c.mu.Lock()
	disconnect := c.disconnect
	c.disconnect = nil
	c.address = ""
	c.mu.Unlock()

	if disconnect == nil {
		return nil
	}
	if err := disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", c.cfg.DeviceName, err)
	}
	c.log.Info("Disconnected", zap.String("device", c.cfg.DeviceName))
	return nil
}

func (c *Central) connect(ctx context.Context, serviceUUID, charUUID bluetooth.UUID) error {
	result, err := c.scan(ctx)
	if err != nil {
		return err
	}

	c.log.Info("Connecting", zap.String("device", result.LocalName()), zap.String("address", result.Address.String()))
	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err = discoveryError("service", c.cfg.Service, len(services), err); err != nil {
		_ = device.Disconnect()
		return err
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err = discoveryError("characteristic", c.cfg.Characteristic, len(chars), err); err != nil {
		_ = device.Disconnect()
		return err
	}

	if err := chars[0].EnableNotifications(c.handleNotification(c.cfg.Characteristic)); err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("enable notifications: %w", err)
	}

	c.mu.Lock()
	c.address = result.Address.String()
	c.disconnect = device.Disconnect
	c.mu.Unlock()
	// drop a stale signal from an earlier link
	select {
	case <-c.lost:
	default:
	}

	c.log.Info("Sensor box connected and streaming", zap.String("device", result.LocalName()))
	return nil
}

// scan blocks until the configured device is advertised or ctx is cancelled.
func (c *Central) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	c.log.Info("Scanning", zap.String("device", c.cfg.DeviceName))
	go func() {
		scanErr <- c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !matchesDevice(result.LocalName(), c.cfg.DeviceName) {
				return
			}
			select {
			case found <- result:
				_ = adapter.StopScan()
			default:
			}
		})
	}()

	select {
	case result := <-found:
		return result, nil
	case err := <-scanErr:
		if err == nil {
			err = errors.New("scan stopped before the device was found")
		}
		return bluetooth.ScanResult{}, err
	case <-ctx.Done():
		_ = c.adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

// discoveryError tells a failed discovery apart from one that found nothing.
func discoveryError(kind, uuid string, found int, err error) error {
	if err != nil {
		return fmt.Errorf("discover %s %s: %w", kind, uuid, err)
	}
	if found == 0 {
		return fmt.Errorf("%s %s: %w", kind, uuid, ErrNotFound)
	}
	return nil
}

func matchesDevice(localName, want string) bool {
	return localName != "" && strings.EqualFold(strings.TrimSpace(localName), strings.TrimSpace(want))
}

// handleNotification processes one characteristic update. The stack reuses
// buf, so the frame is decoded before the callback returns.
func (c *Central) handleNotification(uuid string) func([]byte) {
	return func(buf []byte) {
		frame := append([]byte(nil), buf...)
		reading, err := c.processor.Process(uuid, frame)
		if err != nil {
			c.log.Warn("Failed to decode notification", logger.Hex("frame", frame), zap.Error(err))
			return
		}
		c.sink.Publish(reading)
	}
}
