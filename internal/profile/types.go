package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chuanjin/BaahBridge/internal/inputs"
)

// Profile names the frame layout of one firmware revision.
type Profile struct {
	Name   string        `json:"name"`
	Layout inputs.Layout `json:"layout"`
	Script bool          `json:"script,omitempty"`
}

// Source tells where a loaded profile came from.
type Source string

const (
	SourceJSON   Source = "json"
	SourceScript Source = "script"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName rejects names that cannot be used as a storage file name,
// including the name of the bindings manifest.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid profile name %q", name)
	}
	if strings.EqualFold(name, strings.TrimSuffix(manifestFile, ".json")) {
		return fmt.Errorf("profile name %q is reserved", name)
	}
	return nil
}

// Template is the skeleton of a layout script. Offsets must return every key
// of inputs.FieldNames.
const Template = `
package layout

func Offsets() map[string]int {
	return map[string]int{
		"coarse1":  0,
		"fine1":    1,
		"coarse2":  2,
		"fine2":    3,
		"joystick": 4,
	}
}
`
