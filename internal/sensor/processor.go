// Package sensor turns characteristic updates into readings: decoded muscle
// data plus game values scaled with the current difficulty factor.
package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/chuanjin/BaahBridge/internal/profile"
)

// GameValues are the muscle magnitudes after scaling.
type GameValues struct {
	Muscle1 float64 `json:"muscle1"`
	Muscle2 float64 `json:"muscle2"`
	Factor  float64 `json:"factor"`
}

// Reading is one processed characteristic update. Game is nil while no
// frame has been received.
type Reading struct {
	UUID       string            `json:"uuid,omitempty"`
	Profile    string            `json:"profile"`
	Muscles    inputs.MuscleData `json:"muscles"`
	Game       *GameValues       `json:"game,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Sink receives every successfully processed reading.
type Sink interface {
	Publish(Reading)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Reading)

func (f SinkFunc) Publish(r Reading) { f(r) }

// Discard drops readings.
var Discard Sink = SinkFunc(func(Reading) {})

// Processor decodes characteristic updates and scales them by the current difficulty factor.
type Processor struct {
	dispatcher *profile.Dispatcher
	factor     float64
	// bounds for SetFactor; unbounded while maxFactor is zero
	minFactor float64
	maxFactor float64
	mu        sync.RWMutex
	now       func() time.Time
}

// NewProcessor fails if factor would be rejected by inputs.PrepareValue.
func NewProcessor(d *profile.Dispatcher, factor float64) (*Processor, error) {
	if err := inputs.ValidateFactor(factor); err != nil {
		return nil, err
	}
	return &Processor{dispatcher: d, factor: factor, now: time.Now}, nil
}

func (p *Processor) Factor() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.factor
}

// SetLimits bounds later SetFactor calls to [lo, hi]. The current factor
// must already lie inside the range.
func (p *Processor) SetLimits(lo, hi float64) error {
	if err := inputs.ValidateFactor(lo); err != nil {
		return err
	}
	if lo > hi {
		return fmt.Errorf("%w: limits [%v, %v] are inverted", inputs.ErrInvalidArgument, lo, hi)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.factor < lo || p.factor > hi {
		return fmt.Errorf("%w: factor %v outside [%v, %v]", inputs.ErrInvalidArgument, p.factor, lo, hi)
	}
	p.minFactor, p.maxFactor = lo, hi
	return nil
}

// SetFactor swaps the difficulty factor. An invalid factor leaves the current one in place.
func (p *Processor) SetFactor(factor float64) error {
	if err := inputs.ValidateFactor(factor); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxFactor > 0 && (factor < p.minFactor || factor > p.maxFactor) {
		return fmt.Errorf("%w: factor %v outside [%v, %v]", inputs.ErrInvalidArgument, factor, p.minFactor, p.maxFactor)
	}
	p.factor = factor
	return nil
}

// Process decodes frame with the profile bound to uuid and scales both muscle channels.
func (p *Processor) Process(uuid string, frame []byte) (Reading, error) {
	muscles, name, err := p.dispatcher.Ingest(uuid, frame)
	if err != nil {
		return Reading{}, fmt.Errorf("decode %s: %w", uuid, err)
	}

	r := Reading{
		UUID:       uuid,
		Profile:    name,
		Muscles:    muscles,
		ReceivedAt: p.now(),
	}
	if muscles.IsUnknown() {
		return r, nil
	}

	factor := p.Factor()
	g1, err := inputs.PrepareValue(muscles.Muscle1, factor)
	if err != nil {
		return Reading{}, err
	}
	g2, err := inputs.PrepareValue(muscles.Muscle2, factor)
	if err != nil {
		return Reading{}, err
	}
	r.Game = &GameValues{Muscle1: g1, Muscle2: g2, Factor: factor}
	return r, nil
}
