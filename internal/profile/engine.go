package profile

import (
	"fmt"
	"strings"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Engine evaluates layout scripts.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Execute runs a layout script and returns the validated layout it declares.
// Each script gets its own interpreter so redefinitions cannot leak between profiles.
func (e *Engine) Execute(goCode string) (layout inputs.Layout, err error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return inputs.Layout{}, fmt.Errorf("SETUP_ERROR: %v", err)
	}

	if _, err := i.Eval(stripBuildConstraints(goCode)); err != nil {
		return inputs.Layout{}, fmt.Errorf("COMPILE_ERROR: %v", err)
	}

	v, err := i.Eval("layout.Offsets")
	if err != nil {
		return inputs.Layout{}, fmt.Errorf("RECOVERY_ERROR: could not find Offsets function: %v", err)
	}

	fn, ok := v.Interface().(func() map[string]int)
	if !ok {
		return inputs.Layout{}, fmt.Errorf("RECOVERY_ERROR: Offsets function has wrong signature")
	}

	defer func() {
		if r := recover(); r != nil {
			layout, err = inputs.Layout{}, fmt.Errorf("RUNTIME_ERROR: %v", r)
		}
	}()

	return inputs.LayoutFromMap(fn())
}

// stripBuildConstraints drops "//go:build" lines. Stored scripts carry
// "//go:build ignore" so the Go toolchain skips them, and the interpreter
// would honour that constraint too.
func stripBuildConstraints(code string) string {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//go:build") || strings.HasPrefix(trimmed, "// +build") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
