package inputs

import (
	"errors"
	"fmt"
)

// CoarseStep is the weight of a coarse byte in a muscle magnitude.
const CoarseStep = 32

// Layout is the offset table of the five fields in a sensor frame.
// Wire order of the default layout: [coarse1][fine1][coarse2][fine2][joystick].
type Layout struct {
	Coarse1  int `json:"coarse1"`
	Fine1    int `json:"fine1"`
	Coarse2  int `json:"coarse2"`
	Fine2    int `json:"fine2"`
	Joystick int `json:"joystick"`
}

// DefaultLayout is the layout published by the reference firmware.
var DefaultLayout = Layout{
	Coarse1:  0,
	Fine1:    1,
	Coarse2:  2,
	Fine2:    3,
	Joystick: 4,
}

// FieldNames lists the layout keys in wire order.
var FieldNames = []string{"coarse1", "fine1", "coarse2", "fine2", "joystick"}

func (l Layout) offsets() []int {
	return []int{l.Coarse1, l.Fine1, l.Coarse2, l.Fine2, l.Joystick}
}

// Size is the minimum frame length able to hold every field.
func (l Layout) Size() int {
	size := 0
	for _, off := range l.offsets() {
		if off+1 > size {
			size = off + 1
		}
	}
	return size
}

// Validate rejects negative or overlapping offsets.
func (l Layout) Validate() error {
	seen := make(map[int]string, len(FieldNames))
	for i, off := range l.offsets() {
		name := FieldNames[i]
		if off < 0 {
			return fmt.Errorf("layout field %s: negative offset %d", name, off)
		}
		if other, dup := seen[off]; dup {
			return fmt.Errorf("layout fields %s and %s share offset %d", other, name, off)
		}
		seen[off] = name
	}
	return nil
}

// LayoutFromMap builds a Layout from named offsets. Every field is required.
func LayoutFromMap(m map[string]int) (Layout, error) {
	if m == nil {
		return Layout{}, errors.New("layout: no offsets")
	}
	var missing []string
	get := func(name string) int {
		v, ok := m[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	}
	l := Layout{
		Coarse1:  get("coarse1"),
		Fine1:    get("fine1"),
		Coarse2:  get("coarse2"),
		Fine2:    get("fine2"),
		Joystick: get("joystick"),
	}
	if len(missing) > 0 {
		return Layout{}, fmt.Errorf("layout: missing offsets %v", missing)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Map is the inverse of LayoutFromMap.
func (l Layout) Map() map[string]int {
	m := make(map[string]int, len(FieldNames))
	for i, off := range l.offsets() {
		m[FieldNames[i]] = off
	}
	return m
}
