package profile

import (
	"testing"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sensorUUID = "0000FFE1-0000-1000-8000-00805F9B34FB"

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	mgr := NewManager(t.TempDir(), "")
	require.NoError(t, mgr.AddProfile(Profile{Name: "default", Layout: inputs.DefaultLayout}))
	_, err := mgr.RegisterScript("header", headerScript)
	require.NoError(t, err)
	return NewDispatcher(mgr, "default")
}

func TestDispatcher_BindAndIngest(t *testing.T) {
	d := newTestDispatcher(t)
	require.NoError(t, d.Bind(sensorUUID, "header"))

	tests := []struct {
		name          string
		uuid          string
		input         []byte
		expectedProto string
		expected      inputs.MuscleData
	}{
		{
			name:          "bound characteristic uses header layout",
			uuid:          "0000ffe1-0000-1000-8000-00805f9b34fb",
			input:         []byte{0xAA, 85, 4, 42, 3, 4},
			expectedProto: "header",
			expected:      inputs.MuscleData{Muscle1: 2724, Muscle2: 1347, Joystick: 4},
		},
		{
			name:          "unbound characteristic falls back",
			uuid:          "2a37",
			input:         []byte{20, 15, 20, 15, 0},
			expectedProto: "default",
			expected:      inputs.MuscleData{Muscle1: 655, Muscle2: 655, Joystick: 0},
		},
		{
			name:          "absent frame",
			uuid:          sensorUUID,
			input:         nil,
			expectedProto: "header",
			expected:      inputs.UnknownMuscleData(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, proto, err := d.Ingest(tt.uuid, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedProto, proto)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDispatcher_IngestShortFrame(t *testing.T) {
	d := newTestDispatcher(t)
	require.NoError(t, d.Bind(sensorUUID, "header"))

	// five bytes fit the default layout but not the header one
	_, proto, err := d.Ingest(sensorUUID, []byte{0xAA, 85, 4, 42, 3})
	assert.Equal(t, "header", proto)
	assert.ErrorIs(t, err, inputs.ErrMalformedFrame)
}

func TestDispatcher_BindUnknownProfile(t *testing.T) {
	d := newTestDispatcher(t)
	assert.Error(t, d.Bind(sensorUUID, "missing"))
	assert.Error(t, d.Bind("  ", "default"))
	assert.Empty(t, d.GetBindings())
}

func TestDispatcher_NoFallback(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")
	d := NewDispatcher(mgr, "default")

	_, proto, err := d.Ingest(sensorUUID, []byte{1, 2, 3, 4, 5})
	require.Error(t, err)
	assert.Empty(t, proto)
}

func TestDispatcher_PersistAndRestore(t *testing.T) {
	d := newTestDispatcher(t)
	require.NoError(t, d.Bind(sensorUUID, "header"))
	require.NoError(t, d.Persist())

	bindings := d.GetBindings()
	assert.Equal(t, map[string]string{"0000ffe100001000800000805f9b34fb": "header"}, bindings)

	mgr := d.GetManager()
	bindings["2a37"] = "gone"
	require.NoError(t, mgr.SaveManifest(bindings))

	restored := NewDispatcher(mgr, "default")
	skipped, err := restored.Restore()
	require.NoError(t, err)
	assert.Equal(t, []string{"2a37"}, skipped)

	p, err := restored.Resolve(sensorUUID)
	require.NoError(t, err)
	assert.Equal(t, "header", p.Name)
}

func TestNormalizeUUID(t *testing.T) {
	assert.Equal(t, "0000ffe100001000800000805f9b34fb", NormalizeUUID(" 0000FFE1-0000-1000-8000-00805F9B34FB "))
	assert.Equal(t, "2a37", NormalizeUUID("2A37"))
}
