package inputs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by PrepareValue when the factor is not strictly positive.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedFrame is returned when a frame is shorter than its layout requires.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrOutOfRange is returned by a Characteristic read outside of its payload.
	ErrOutOfRange = errors.New("offset out of range")
)

// FactorError carries the offending difficulty factor.
type FactorError struct {
	Factor float64
}

func (e *FactorError) Error() string {
	return fmt.Sprintf("%v: factor must be > 0, got %v", ErrInvalidArgument, e.Factor)
}

func (e *FactorError) Unwrap() error { return ErrInvalidArgument }

// FrameError describes a frame that does not cover the layout's offsets.
type FrameError struct {
	Len      int
	Required int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: expected at least %d bytes, got %d", ErrMalformedFrame, e.Required, e.Len)
}

func (e *FrameError) Unwrap() error { return ErrMalformedFrame }
