package inputs

import "fmt"

// Unknown is the sentinel field value used before any frame is received.
const Unknown = -1

// MuscleData holds one decoded frame.
type MuscleData struct {
	Muscle1  int `json:"muscle1"`
	Muscle2  int `json:"muscle2"`
	Joystick int `json:"joystick"`
}

// UnknownMuscleData is returned for an absent frame.
func UnknownMuscleData() MuscleData {
	return MuscleData{Muscle1: Unknown, Muscle2: Unknown, Joystick: Unknown}
}

// IsUnknown reports whether d is the absent-frame sentinel.
func (d MuscleData) IsUnknown() bool {
	return d == UnknownMuscleData()
}

// FrameKind classifies a characteristic against a layout.
type FrameKind int

const (
	NoFrame FrameKind = iota
	MalformedFrame
	CompleteFrame
)

func (k FrameKind) String() string {
	switch k {
	case NoFrame:
		return "no-frame"
	case MalformedFrame:
		return "malformed"
	case CompleteFrame:
		return "complete"
	}
	return fmt.Sprintf("FrameKind(%d)", int(k))
}

// Classify reports whether c is absent, too short for l, or decodable.
func (l Layout) Classify(c Characteristic) FrameKind {
	switch {
	case c == nil:
		return NoFrame
	case c.Len() < l.Size():
		return MalformedFrame
	default:
		return CompleteFrame
	}
}

// ExtractValues decodes c with DefaultLayout.
func ExtractValues(c Characteristic) (MuscleData, error) {
	return ExtractValuesWithLayout(c, DefaultLayout)
}

// ExtractValuesWithLayout decodes c using the offsets in l.
// A nil characteristic yields UnknownMuscleData and no error.
func ExtractValuesWithLayout(c Characteristic, l Layout) (MuscleData, error) {
	switch l.Classify(c) {
	case NoFrame:
		return UnknownMuscleData(), nil
	case MalformedFrame:
		return MuscleData{}, &FrameError{Len: c.Len(), Required: l.Size()}
	}

	r := reader{c: c}
	m1 := r.magnitude(l.Coarse1, l.Fine1)
	m2 := r.magnitude(l.Coarse2, l.Fine2)
	j := r.byteAt(l.Joystick)
	if r.err != nil {
		return MuscleData{}, r.err
	}
	return MuscleData{Muscle1: m1, Muscle2: m2, Joystick: j}, nil
}

// reader keeps the first read error so the decode path stays linear.
type reader struct {
	c   Characteristic
	err error
}

func (r *reader) byteAt(off int) int {
	if r.err != nil {
		return 0
	}
	b, err := r.c.ByteAt(off)
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		return 0
	}
	return int(b)
}

func (r *reader) magnitude(coarse, fine int) int {
	return r.byteAt(coarse)*CoarseStep + r.byteAt(fine)
}
