//go:build ignore

package layout

// Reference firmware: [coarse1][fine1][coarse2][fine2][joystick]
func Offsets() map[string]int {
	return map[string]int{
		"coarse1":  0,
		"fine1":    1,
		"coarse2":  2,
		"fine2":    3,
		"joystick": 4,
	}
}
