package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerScript = `package layout

func Offsets() map[string]int {
	return map[string]int{"coarse1": 1, "fine1": 2, "coarse2": 3, "fine2": 4, "joystick": 5}
}
`

func TestManager_RegisterAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(tmpDir, "")

	// 1. Register a static profile and a scripted one
	v1 := Profile{Name: "v1", Layout: inputs.DefaultLayout}
	require.NoError(t, mgr.RegisterProfile(v1))

	v2, err := mgr.RegisterScript("v2", headerScript)
	require.NoError(t, err)
	assert.True(t, v2.Script)
	assert.Equal(t, 6, v2.Layout.Size())

	// 2. Verify files exist
	assert.FileExists(t, filepath.Join(tmpDir, "v1.json"))
	assert.FileExists(t, filepath.Join(tmpDir, "v2.go"))

	// 3. A fresh manager simulates a restart
	mgr2 := NewManager(tmpDir, "")
	loaded, err := mgr2.LoadSavedProfiles()
	require.NoError(t, err)
	assert.Equal(t, map[string]Source{"v1": SourceJSON, "v2": SourceScript}, loaded)

	got, ok := mgr2.GetProfile("v1")
	require.True(t, ok)
	assert.Equal(t, inputs.DefaultLayout, got.Layout)

	code, ok := mgr2.GetScript("v2")
	require.True(t, ok)
	assert.Equal(t, headerScript, code)

	names := []string{}
	for _, p := range mgr2.Profiles() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"v1", "v2"}, names)
}

func TestManager_RegisterScriptRejectsBrokenCode(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(tmpDir, "")

	_, err := mgr.RegisterScript("broken", "package layout\nfunc Offsets() map[string]int { return nil }")
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(tmpDir, "broken.go"))
	_, ok := mgr.GetProfile("broken")
	assert.False(t, ok)
}

func TestManager_RejectsBadNames(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")

	for _, name := range []string{"", "../escape", "a/b", ".hidden", "manifest", "Manifest"} {
		err := mgr.RegisterProfile(Profile{Name: name, Layout: inputs.DefaultLayout})
		assert.Error(t, err, "name %q", name)
	}
}

func TestManager_ProfileCannotOverwriteManifest(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")
	require.NoError(t, mgr.SaveManifest(map[string]string{"ffe1": "default"}))

	err := mgr.RegisterProfile(Profile{Name: "manifest", Layout: inputs.DefaultLayout})
	require.Error(t, err)
	_, err = mgr.RegisterScript("manifest", headerScript)
	require.Error(t, err)

	bindings, err := mgr.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ffe1": "default"}, bindings)
}

func TestManager_SwitchingKindReplacesFile(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(tmpDir, "")

	_, err := mgr.RegisterScript("v3", headerScript)
	require.NoError(t, err)
	require.NoError(t, mgr.RegisterProfile(Profile{Name: "v3", Layout: inputs.DefaultLayout}))

	assert.NoFileExists(t, filepath.Join(tmpDir, "v3.go"))
	_, ok := mgr.GetScript("v3")
	assert.False(t, ok)
}

func TestManager_LoadSkipsInvalidFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.go"), []byte("package layout"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignored"), 0o644))

	mgr := NewManager(tmpDir, "")
	loaded, err := mgr.LoadSavedProfiles()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestManager_Seeds(t *testing.T) {
	tmpDir := t.TempDir()
	storage := filepath.Join(tmpDir, "storage")
	seeds := filepath.Join(tmpDir, "seeds")
	require.NoError(t, os.MkdirAll(seeds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(seeds, "header.go"), []byte(headerScript), 0o644))

	mgr := NewManager(storage, seeds)
	loaded, err := mgr.LoadSavedProfiles()
	require.NoError(t, err)
	assert.Equal(t, SourceScript, loaded["header"])
	assert.FileExists(t, filepath.Join(storage, "header.go"))

	// A profile edited in storage is not overwritten by its seed.
	require.NoError(t, os.WriteFile(filepath.Join(storage, "header.go"), []byte(Template), 0o644))
	mgr2 := NewManager(storage, seeds)
	_, err = mgr2.LoadSavedProfiles()
	require.NoError(t, err)
	code, ok := mgr2.GetScript("header")
	require.True(t, ok)
	assert.Equal(t, Template, code)
}

func TestManager_Manifest(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")

	bindings := map[string]string{
		"0000ffe1-0000-1000-8000-00805f9b34fb": "v1",
		"2a37":                                 "v2",
	}

	require.NoError(t, mgr.SaveManifest(bindings))

	loaded, err := mgr.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, bindings, loaded)
}

func TestManager_Manifest_Empty(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")

	loaded, err := mgr.LoadManifest()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
