package mcp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/profile"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Server wraps the MCP server with BaahBridge dependencies
type Server struct {
	dispatcher *profile.Dispatcher
	manager    *profile.Manager
	processor  *sensor.Processor
	mcpServer  *mcp.Server
}

// NewServer creates a new MCP server for BaahBridge
func NewServer(d *profile.Dispatcher, m *profile.Manager, p *sensor.Processor) *Server {
	s := &Server{
		dispatcher: d,
		manager:    m,
		processor:  p,
	}

	impl := &mcp.Implementation{
		Name:    "baahbridge",
		Version: "1.0.0",
	}

	s.mcpServer = mcp.NewServer(impl, nil)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// Run starts the MCP server over stdio transport
func (s *Server) Run(ctx context.Context) error {
	logger.Info("Starting BaahBridge MCP Server...")
	transport := &mcp.StdioTransport{}
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "profile://list",
		Name:        "Profile List",
		Description: "Known firmware profiles with their frame layouts and bound characteristics",
		MIMEType:    "application/json",
	}, s.handleProfileList)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "profile://manifest",
		Name:        "Profile Manifest",
		Description: "Persisted mapping of characteristic UUIDs to firmware profiles",
		MIMEType:    "application/json",
	}, s.handleManifest)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "decode_frame",
		Description: "Decode a raw Baah Box sensor frame into muscle and joystick values",
	}, s.handleDecodeFrame)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "prepare_value",
		Description: "Scale a muscle magnitude by a difficulty factor for game logic",
	}, s.handlePrepareValue)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_profiles",
		Description: "List all firmware profiles",
	}, s.handleListProfiles)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "register_profile",
		Description: "Store a firmware profile given its byte offsets",
	}, s.handleRegisterProfile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "register_layout_script",
		Description: "Evaluate and store a layout script as a firmware profile",
	}, s.handleRegisterScript)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "bind_profile",
		Description: "Route a characteristic UUID to a firmware profile and persist the manifest",
	}, s.handleBindProfile)
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        "layout_script",
		Description: "Template for writing the layout script of a new firmware revision",
	}, s.handleLayoutScriptPrompt)
}

// Resource Handlers

type profileEntry struct {
	Name            string        `json:"name"`
	Layout          inputs.Layout `json:"layout"`
	Script          bool          `json:"script"`
	Characteristics []string      `json:"characteristics"`
}

func (s *Server) profileEntries() []profileEntry {
	byProfile := make(map[string][]string)
	for uuid, name := range s.dispatcher.GetBindings() {
		byProfile[name] = append(byProfile[name], uuid)
	}

	profiles := s.manager.Profiles()
	entries := make([]profileEntry, 0, len(profiles))
	for _, p := range profiles {
		uuids := byProfile[p.Name]
		sort.Strings(uuids)
		if uuids == nil {
			uuids = []string{}
		}
		entries = append(entries, profileEntry{
			Name:            p.Name,
			Layout:          p.Layout,
			Script:          p.Script,
			Characteristics: uuids,
		})
	}
	return entries
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) handleProfileList(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.profileEntries())
}

func (s *Server) handleManifest(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	bindings, err := s.manager.LoadManifest()
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, profile.Manifest{Bindings: bindings})
}

// Tool Handlers

type DecodeFrameInput struct {
	Data           string `json:"data" jsonschema:"Hex-encoded frame, or - for no frame received yet"`
	Characteristic string `json:"characteristic,omitempty" jsonschema:"Characteristic UUID the frame came from; selects the firmware profile"`
}

type DecodeFrameOutput struct {
	Profile string             `json:"profile" jsonschema:"Firmware profile used to decode the frame"`
	Muscles inputs.MuscleData  `json:"muscles" jsonschema:"Decoded values; all -1 when no frame was given"`
	Game    *sensor.GameValues `json:"game,omitempty" jsonschema:"Muscle values scaled with the current difficulty factor"`
}

func decodeHex(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" || data == "-" {
		return nil, nil
	}
	data = strings.TrimPrefix(strings.TrimPrefix(data, "0x"), "0X")
	frame, err := hex.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %v", err)
	}
	return frame, nil
}

func (s *Server) handleDecodeFrame(ctx context.Context, req *mcp.CallToolRequest, input DecodeFrameInput) (*mcp.CallToolResult, DecodeFrameOutput, error) {
	frame, err := decodeHex(input.Data)
	if err != nil {
		return nil, DecodeFrameOutput{}, err
	}

	reading, err := s.processor.Process(input.Characteristic, frame)
	if err != nil {
		return nil, DecodeFrameOutput{}, err
	}

	logger.Info("MCP: Decoded frame", zap.String("profile", reading.Profile), logger.Hex("frame", frame))

	return nil, DecodeFrameOutput{
		Profile: reading.Profile,
		Muscles: reading.Muscles,
		Game:    reading.Game,
	}, nil
}

type PrepareValueInput struct {
	SensorValue int     `json:"sensor_value" jsonschema:"Muscle magnitude from decode_frame"`
	Factor      float64 `json:"factor" jsonschema:"Difficulty factor, must be greater than 0"`
}

type PrepareValueOutput struct {
	Value float64 `json:"value" jsonschema:"Scaled value for game logic"`
}

func (s *Server) handlePrepareValue(ctx context.Context, req *mcp.CallToolRequest, input PrepareValueInput) (*mcp.CallToolResult, PrepareValueOutput, error) {
	v, err := inputs.PrepareValue(input.SensorValue, input.Factor)
	if err != nil {
		return nil, PrepareValueOutput{}, err
	}
	return nil, PrepareValueOutput{Value: v}, nil
}

type ListProfilesOutput struct {
	Profiles []ProfileInfo `json:"profiles" jsonschema:"Known firmware profiles"`
}

type ProfileInfo struct {
	Name            string   `json:"name" jsonschema:"Profile name"`
	Script          bool     `json:"script" jsonschema:"Whether the layout comes from a layout script"`
	Size            int      `json:"size" jsonschema:"Minimum frame length in bytes"`
	Characteristics []string `json:"characteristics" jsonschema:"Characteristic UUIDs routed to this profile"`
}

func (s *Server) handleListProfiles(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, ListProfilesOutput, error) {
	entries := s.profileEntries()

	profiles := make([]ProfileInfo, 0, len(entries))
	for _, e := range entries {
		profiles = append(profiles, ProfileInfo{
			Name:            e.Name,
			Script:          e.Script,
			Size:            e.Layout.Size(),
			Characteristics: e.Characteristics,
		})
	}

	logger.Info("MCP: Listed profiles", zap.Int("count", len(profiles)))

	return nil, ListProfilesOutput{Profiles: profiles}, nil
}

type RegisterProfileInput struct {
	Name   string        `json:"name" jsonschema:"Profile name, also used as the storage file name"`
	Layout inputs.Layout `json:"layout" jsonschema:"Byte offsets of coarse1, fine1, coarse2, fine2 and joystick"`
}

type RegisterProfileOutput struct {
	Name string `json:"name" jsonschema:"Stored profile name"`
	Size int    `json:"size" jsonschema:"Minimum frame length in bytes"`
}

func (s *Server) handleRegisterProfile(ctx context.Context, req *mcp.CallToolRequest, input RegisterProfileInput) (*mcp.CallToolResult, RegisterProfileOutput, error) {
	p := profile.Profile{Name: input.Name, Layout: input.Layout}
	if err := s.manager.RegisterProfile(p); err != nil {
		return nil, RegisterProfileOutput{}, fmt.Errorf("register %s: %w", input.Name, err)
	}

	logger.Info("MCP: Registered profile", zap.String("profile", p.Name))

	return nil, RegisterProfileOutput{Name: p.Name, Size: p.Layout.Size()}, nil
}

type RegisterScriptInput struct {
	Name string `json:"name" jsonschema:"Profile name, also used as the storage file name"`
	Code string `json:"code" jsonschema:"Go source of package layout defining Offsets() map[string]int"`
}

type RegisterScriptOutput struct {
	Name   string        `json:"name" jsonschema:"Stored profile name"`
	Layout inputs.Layout `json:"layout" jsonschema:"Byte offsets returned by the script"`
}

func (s *Server) handleRegisterScript(ctx context.Context, req *mcp.CallToolRequest, input RegisterScriptInput) (*mcp.CallToolResult, RegisterScriptOutput, error) {
	p, err := s.manager.RegisterScript(input.Name, profile.SanitizeScript(input.Code))
	if err != nil {
		return nil, RegisterScriptOutput{}, fmt.Errorf("register %s: %w", input.Name, err)
	}

	logger.Info("MCP: Registered layout script", zap.String("profile", p.Name))

	return nil, RegisterScriptOutput{Name: p.Name, Layout: p.Layout}, nil
}

type BindProfileInput struct {
	Characteristic string `json:"characteristic" jsonschema:"Characteristic UUID"`
	Profile        string `json:"profile" jsonschema:"Name of a known profile"`
}

type BindProfileOutput struct {
	Bindings map[string]string `json:"bindings" jsonschema:"All characteristic bindings after the change"`
}

func (s *Server) handleBindProfile(ctx context.Context, req *mcp.CallToolRequest, input BindProfileInput) (*mcp.CallToolResult, BindProfileOutput, error) {
	if err := s.dispatcher.Bind(input.Characteristic, input.Profile); err != nil {
		return nil, BindProfileOutput{}, err
	}
	if err := s.dispatcher.Persist(); err != nil {
		return nil, BindProfileOutput{}, fmt.Errorf("persist manifest: %w", err)
	}

	logger.Info("MCP: Bound profile", zap.String("characteristic", input.Characteristic), zap.String("profile", input.Profile))

	return nil, BindProfileOutput{Bindings: s.dispatcher.GetBindings()}, nil
}

// Prompt Handlers

type LayoutScriptPromptArgs struct {
	Firmware   string `json:"firmware" jsonschema:"Firmware revision the script describes"`
	SampleData string `json:"sample_data" jsonschema:"Hex-encoded sample frame"`
	BaseOn     string `json:"base_on" jsonschema:"Optional existing profile to start from"`
}

func (s *Server) handleLayoutScriptPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var args LayoutScriptPromptArgs
	if req.Params.Arguments != nil {
		data, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, err
		}
	}

	base := profile.Template
	if args.BaseOn != "" {
		code, ok := s.manager.GetScript(args.BaseOn)
		if !ok {
			return nil, fmt.Errorf("profile %s has no layout script", args.BaseOn)
		}
		base = code
	}

	firmware := args.Firmware
	if firmware == "" {
		firmware = "unknown firmware revision"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a layout script for the Baah Box sensor frame of %s.\n\n", firmware)
	b.WriteString("Each muscle channel is sent as a coarse byte and a fine byte; the magnitude is coarse*32 + fine. ")
	b.WriteString("The joystick state is one byte. Offsets must return the byte offset of each field, ")
	fmt.Fprintf(&b, "with exactly these keys: %s. Offsets must be distinct and non-negative.\n\n", strings.Join(inputs.FieldNames, ", "))
	fmt.Fprintf(&b, "START FROM:\n```go\n%s\n```\n", strings.TrimSpace(base))
	if args.SampleData != "" {
		fmt.Fprintf(&b, "\nSAMPLE FRAME (Hex): %s\n", args.SampleData)
	}
	b.WriteString("\nReturn only the Go code.")

	return &mcp.GetPromptResult{
		Description: "Layout script authoring prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: b.String(),
				},
			},
		},
	}, nil
}
