package hub

import (
	"context"
	"encoding/json"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"go.uber.org/zap"
)

const readingBuffer = 64

// Broadcaster queues processed readings and broadcasts them to the hub.
// It implements sensor.Sink.
type Broadcaster struct {
	hub      *Hub
	readings chan sensor.Reading
	seq      int64
}

func NewBroadcaster(h *Hub) *Broadcaster {
	return &Broadcaster{
		hub:      h,
		readings: make(chan sensor.Reading, readingBuffer),
	}
}

// Publish never blocks the frame source; readings are dropped when the queue is full.
func (b *Broadcaster) Publish(r sensor.Reading) {
	select {
	case b.readings <- r:
	default:
		logger.Debug("Broadcast queue full, dropping reading", zap.String("profile", r.Profile))
	}
}

// Run starts the broadcaster loop. Should be run in a goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.readings:
			b.seq++
			data, err := json.Marshal(NewReadingMessage(b.seq, &r))
			if err != nil {
				logger.Error("Error marshaling reading", zap.Error(err))
				continue
			}
			b.hub.Broadcast(data)
		}
	}
}
