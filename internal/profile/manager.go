package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"go.uber.org/zap"
)

const manifestFile = "manifest.json"

// Manager keeps firmware profiles in memory and on disk.
// Static profiles are stored as <name>.json, layout scripts as <name>.go.
type Manager struct {
	engine      *Engine
	storagePath string
	seedPath    string
	cache       map[string]Profile
	scripts     map[string]string // name -> layout script source
	mu          sync.RWMutex
}

func NewManager(storagePath, seedPath string) *Manager {
	if _, err := os.Stat(storagePath); os.IsNotExist(err) {
		if err := os.MkdirAll(storagePath, 0o755); err != nil {
			logger.Error("Failed to create profile storage", zap.String("path", storagePath), zap.Error(err))
		}
	}
	return &Manager{
		engine:      NewEngine(),
		storagePath: storagePath,
		seedPath:    seedPath,
		cache:       make(map[string]Profile),
		scripts:     make(map[string]string),
	}
}

// AddProfile registers a profile in memory only.
func (m *Manager) AddProfile(p Profile) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if err := p.Layout.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[p.Name] = p
	return nil
}

// LoadSavedProfiles copies missing seed files into storage, then loads every
// profile found there. It returns the source of each loaded profile.
func (m *Manager) LoadSavedProfiles() (map[string]Source, error) {
	if err := m.copySeeds(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.storagePath)
	if err != nil {
		return nil, err
	}

	loaded := make(map[string]Source)
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == manifestFile {
			continue
		}
		ext := filepath.Ext(entry.Name())
		name := strings.TrimSuffix(entry.Name(), ext)
		path := filepath.Join(m.storagePath, entry.Name())

		switch ext {
		case ".json":
			p, err := readProfile(path)
			if err != nil {
				logger.Warn("Skipping unreadable profile", zap.String("file", path), zap.Error(err))
				continue
			}
			p.Name = name
			if err := m.AddProfile(p); err != nil {
				logger.Warn("Skipping invalid profile", zap.String("file", path), zap.Error(err))
				continue
			}
			loaded[name] = SourceJSON
		case ".go":
			content, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("Skipping unreadable layout script", zap.String("file", path), zap.Error(err))
				continue
			}
			if _, err := m.loadScript(name, string(content)); err != nil {
				logger.Warn("Skipping broken layout script", zap.String("file", path), zap.Error(err))
				continue
			}
			loaded[name] = SourceScript
		default:
			continue
		}
		logger.Info("Loaded firmware profile", zap.String("profile", name), zap.String("source", string(loaded[name])))
	}
	return loaded, nil
}

func (m *Manager) copySeeds() error {
	if m.seedPath == "" {
		return nil
	}
	entries, err := os.ReadDir(m.seedPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seeds: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".go" && ext != ".json") {
			continue
		}
		dst := filepath.Join(m.storagePath, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(m.seedPath, entry.Name()), dst); err != nil {
			return fmt.Errorf("seed %s: %w", entry.Name(), err)
		}
		logger.Debug("Seeded profile", zap.String("file", entry.Name()))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (m *Manager) loadScript(name, code string) (Profile, error) {
	if err := ValidateName(name); err != nil {
		return Profile{}, err
	}
	layout, err := m.engine.Execute(code)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{Name: name, Layout: layout, Script: true}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[name] = p
	m.scripts[name] = code
	return p, nil
}

// RegisterProfile saves a static profile to disk and cache.
func (m *Manager) RegisterProfile(p Profile) error {
	if err := m.AddProfile(p); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scripts, p.Name)
	_ = os.Remove(filepath.Join(m.storagePath, p.Name+".go"))
	return os.WriteFile(filepath.Join(m.storagePath, p.Name+".json"), data, 0o644)
}

// RegisterScript evaluates a layout script and, if it yields a valid layout,
// saves it to disk and cache.
func (m *Manager) RegisterScript(name, code string) (Profile, error) {
	p, err := m.loadScript(name, code)
	if err != nil {
		return Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = os.Remove(filepath.Join(m.storagePath, name+".json"))
	if err := os.WriteFile(filepath.Join(m.storagePath, name+".go"), []byte(code), 0o644); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// GetProfile returns the cached profile for name.
func (m *Manager) GetProfile(name string) (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.cache[name]
	return p, ok
}

// GetScript returns the layout script source of a scripted profile.
func (m *Manager) GetScript(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.scripts[name]
	return code, ok
}

// Profiles returns every known profile sorted by name.
func (m *Manager) Profiles() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Profile, 0, len(m.cache))
	for _, p := range m.cache {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Manifest is the persistent mapping of characteristic UUIDs to profile names.
type Manifest struct {
	Bindings map[string]string `json:"bindings"`
}

// SaveManifest writes the current dispatcher bindings to manifest.json.
func (m *Manager) SaveManifest(bindings map[string]string) error {
	manifest := Manifest{Bindings: bindings}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(m.storagePath, manifestFile)
	return os.WriteFile(path, data, 0o644)
}

// LoadManifest reads manifest.json. A missing file yields empty bindings.
func (m *Manager) LoadManifest() (map[string]string, error) {
	path := filepath.Join(m.storagePath, manifestFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	if manifest.Bindings == nil {
		manifest.Bindings = make(map[string]string)
	}
	return manifest.Bindings, nil
}
