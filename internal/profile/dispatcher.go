package profile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chuanjin/BaahBridge/internal/inputs"
)

// Dispatcher routes characteristic updates to the layout of the firmware
// profile bound to their UUID.
type Dispatcher struct {
	manager *Manager
	// Normalized characteristic UUID -> profile name, e.g. "0000ffe1...34fb" -> "baahbox_v1"
	routes   map[string]string
	fallback string
	mu       sync.RWMutex
}

func NewDispatcher(mgr *Manager, fallback string) *Dispatcher {
	return &Dispatcher{
		manager:  mgr,
		routes:   make(map[string]string),
		fallback: fallback,
	}
}

// NormalizeUUID lowercases a UUID and strips its dashes.
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(uuid), "-", ""))
}

func (d *Dispatcher) GetManager() *Manager {
	return d.manager
}

// GetBindings returns a copy of the current UUID-to-profile mappings.
func (d *Dispatcher) GetBindings() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	bindings := make(map[string]string, len(d.routes))
	for k, v := range d.routes {
		bindings[k] = v
	}
	return bindings
}

// Bind links a characteristic UUID to a known profile.
func (d *Dispatcher) Bind(uuid, profileName string) error {
	key := NormalizeUUID(uuid)
	if key == "" {
		return fmt.Errorf("empty characteristic UUID")
	}
	if _, ok := d.manager.GetProfile(profileName); !ok {
		return fmt.Errorf("unknown profile %q", profileName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[key] = profileName
	return nil
}

// Restore binds every manifest entry whose profile is loaded and returns the
// entries that were skipped.
func (d *Dispatcher) Restore() ([]string, error) {
	bindings, err := d.manager.LoadManifest()
	if err != nil {
		return nil, err
	}
	var skipped []string
	for uuid, name := range bindings {
		if err := d.Bind(uuid, name); err != nil {
			skipped = append(skipped, uuid)
		}
	}
	return skipped, nil
}

// Persist writes the current bindings to the manifest.
func (d *Dispatcher) Persist() error {
	return d.manager.SaveManifest(d.GetBindings())
}

// Resolve returns the profile for uuid, falling back to the default profile.
func (d *Dispatcher) Resolve(uuid string) (Profile, error) {
	d.mu.RLock()
	name, ok := d.routes[NormalizeUUID(uuid)]
	d.mu.RUnlock()
	if !ok {
		name = d.fallback
	}

	p, exists := d.manager.GetProfile(name)
	if !exists {
		return Profile{}, fmt.Errorf("no profile found for characteristic %q (profile %q)", uuid, name)
	}
	return p, nil
}

// Ingest decodes one characteristic update. A nil frame is the "nothing
// received yet" case and yields the unknown sentinel.
func (d *Dispatcher) Ingest(uuid string, frame []byte) (inputs.MuscleData, string, error) {
	p, err := d.Resolve(uuid)
	if err != nil {
		return inputs.MuscleData{}, "", err
	}

	data, err := inputs.ExtractValuesWithLayout(inputs.FromBytes(frame), p.Layout)
	return data, p.Name, err
}
