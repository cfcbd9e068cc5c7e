//go:build ignore

package layout

// Gateway builds that prepend a one byte frame marker.
func Offsets() map[string]int {
	const marker = 1
	return map[string]int{
		"coarse1":  marker + 0,
		"fine1":    marker + 1,
		"coarse2":  marker + 2,
		"fine2":    marker + 3,
		"joystick": marker + 4,
	}
}
