package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/chuanjin/BaahBridge/internal/profile"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shiftedScript = `package layout

func Offsets() map[string]int {
	return map[string]int{"coarse1": 1, "fine1": 2, "coarse2": 3, "fine2": 4, "joystick": 5}
}
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := profile.NewManager(t.TempDir(), "")
	require.NoError(t, mgr.AddProfile(profile.Profile{Name: "default", Layout: inputs.DefaultLayout}))
	dispatcher := profile.NewDispatcher(mgr, "default")
	processor, err := sensor.NewProcessor(dispatcher, inputs.GameLogicDivider)
	require.NoError(t, err)
	return NewServer(dispatcher, mgr, processor)
}

func TestMCPServerInitialization(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.dispatcher)
	assert.Equal(t, server.dispatcher.GetManager(), server.manager)
	assert.NotNil(t, server.processor)
}

func TestDecodeFrameHandler(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	t.Run("complete frame", func(t *testing.T) {
		result, output, err := server.handleDecodeFrame(ctx, req, DecodeFrameInput{Data: "140F0A0502"})
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, "default", output.Profile)
		assert.Equal(t, inputs.MuscleData{Muscle1: 655, Muscle2: 325, Joystick: 2}, output.Muscles)
		require.NotNil(t, output.Game)
		assert.Equal(t, 325.0, output.Game.Muscle2)
	})

	t.Run("absent frame", func(t *testing.T) {
		_, output, err := server.handleDecodeFrame(ctx, req, DecodeFrameInput{Data: "-"})
		require.NoError(t, err)
		assert.True(t, output.Muscles.IsUnknown())
		assert.Nil(t, output.Game)
	})

	t.Run("short frame", func(t *testing.T) {
		_, _, err := server.handleDecodeFrame(ctx, req, DecodeFrameInput{Data: "0x0102"})
		require.Error(t, err)
		assert.ErrorIs(t, err, inputs.ErrMalformedFrame)
	})

	t.Run("bad hex", func(t *testing.T) {
		_, _, err := server.handleDecodeFrame(ctx, req, DecodeFrameInput{Data: "xyz"})
		assert.Error(t, err)
	})
}

func TestPrepareValueHandler(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	_, output, err := server.handlePrepareValue(ctx, req, PrepareValueInput{SensorValue: 100, Factor: 20})
	require.NoError(t, err)
	assert.Equal(t, 200.0, output.Value)

	_, _, err = server.handlePrepareValue(ctx, req, PrepareValueInput{SensorValue: 100, Factor: 0})
	assert.ErrorIs(t, err, inputs.ErrInvalidArgument)
}

func TestRegisterBindAndListProfiles(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	_, registered, err := server.handleRegisterScript(ctx, req, RegisterScriptInput{Name: "framed", Code: "```go\n" + shiftedScript + "```"})
	require.NoError(t, err)
	assert.Equal(t, 5, registered.Layout.Joystick)

	_, bound, err := server.handleBindProfile(ctx, req, BindProfileInput{
		Characteristic: "0000FFE2-0000-1000-8000-00805F9B34FB",
		Profile:        "framed",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0000ffe200001000800000805f9b34fb": "framed"}, bound.Bindings)

	_, _, err = server.handleBindProfile(ctx, req, BindProfileInput{Characteristic: "ffe3", Profile: "missing"})
	assert.Error(t, err)

	result, output, err := server.handleListProfiles(ctx, req, struct{}{})
	require.NoError(t, err)
	assert.Nil(t, result)
	require.Len(t, output.Profiles, 2)
	assert.Equal(t, "default", output.Profiles[0].Name)
	assert.Equal(t, 5, output.Profiles[0].Size)
	assert.Empty(t, output.Profiles[0].Characteristics)
	assert.Equal(t, "framed", output.Profiles[1].Name)
	assert.True(t, output.Profiles[1].Script)
	assert.Equal(t, 6, output.Profiles[1].Size)
	assert.Equal(t, []string{"0000ffe200001000800000805f9b34fb"}, output.Profiles[1].Characteristics)

	_, decoded, err := server.handleDecodeFrame(ctx, req, DecodeFrameInput{
		Data:           "7E14005A0003",
		Characteristic: "0000ffe2-0000-1000-8000-00805f9b34fb",
	})
	require.NoError(t, err)
	assert.Equal(t, "framed", decoded.Profile)
	assert.Equal(t, inputs.MuscleData{Muscle1: 640, Muscle2: 2880, Joystick: 3}, decoded.Muscles)
}

func TestRegisterProfileHandler(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	require.NoError(t, server.dispatcher.Bind("ffe1", "default"))
	require.NoError(t, server.dispatcher.Persist())

	_, output, err := server.handleRegisterProfile(ctx, req, RegisterProfileInput{
		Name:   "wide",
		Layout: inputs.Layout{Coarse1: 0, Fine1: 2, Coarse2: 4, Fine2: 6, Joystick: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "wide", output.Name)
	assert.Equal(t, 8, output.Size)

	_, ok := server.manager.GetProfile("wide")
	assert.True(t, ok)

	_, _, err = server.handleRegisterProfile(ctx, req, RegisterProfileInput{Name: "overlap", Layout: inputs.Layout{}})
	assert.Error(t, err)

	_, _, err = server.handleRegisterProfile(ctx, req, RegisterProfileInput{Name: "manifest", Layout: inputs.DefaultLayout})
	assert.Error(t, err)

	bindings, err := server.manager.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ffe1": "default"}, bindings)
}

func TestProfileListResource(t *testing.T) {
	server := newTestServer(t)
	require.NoError(t, server.manager.AddProfile(profile.Profile{
		Name:   "framed",
		Layout: inputs.Layout{Coarse1: 1, Fine1: 2, Coarse2: 3, Fine2: 4, Joystick: 5},
	}))
	require.NoError(t, server.dispatcher.Bind("ffe2", "framed"))

	ctx := context.Background()
	req := &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: "profile://list",
		},
	}

	result, err := server.handleProfileList(ctx, req)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Len(t, result.Contents, 1)
	assert.Equal(t, "profile://list", result.Contents[0].URI)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var profiles []profileEntry
	err = json.Unmarshal([]byte(result.Contents[0].Text), &profiles)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, []string{"ffe2"}, profiles[1].Characteristics)
}

func TestManifestResource(t *testing.T) {
	server := newTestServer(t)
	require.NoError(t, server.dispatcher.Bind("ffe1", "default"))
	require.NoError(t, server.dispatcher.Persist())

	ctx := context.Background()
	req := &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: "profile://manifest",
		},
	}

	result, err := server.handleManifest(ctx, req)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Len(t, result.Contents, 1)
	assert.Equal(t, "profile://manifest", result.Contents[0].URI)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var manifest profile.Manifest
	err = json.Unmarshal([]byte(result.Contents[0].Text), &manifest)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ffe1": "default"}, manifest.Bindings)
}

func TestLayoutScriptPrompt(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleLayoutScriptPrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{
			Name:      "layout_script",
			Arguments: map[string]string{"firmware": "v2 with header byte", "sample_data": "7E14005A0003"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	text := result.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "v2 with header byte")
	assert.Contains(t, text, "func Offsets() map[string]int")
	assert.Contains(t, text, "7E14005A0003")

	_, err = server.handleLayoutScriptPrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{
			Name:      "layout_script",
			Arguments: map[string]string{"base_on": "default"},
		},
	})
	assert.Error(t, err)
}
