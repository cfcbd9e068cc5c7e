// Package config loads service settings from flags, BAAHBOX_* environment
// variables and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/chuanjin/BaahBridge/internal/inputs"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. BAAHBOX_TCP_ADDR.
const EnvPrefix = "BAAHBOX"

type Mode string

const (
	ModeTCP    Mode = "tcp"
	ModeMCP    Mode = "mcp"
	ModeBLE    Mode = "ble"
	ModeSerial Mode = "serial"
)

// Difficulty bounds the factor handed to inputs.PrepareValue.
type Difficulty struct {
	Factor float64
	Min    float64
	Max    float64
}

type BLEConfig struct {
	Device         string
	Service        string
	Characteristic string
}

type SerialConfig struct {
	Port string
	Baud int
}

type Config struct {
	Mode           Mode
	Debug          bool
	TCPAddr        string
	WSAddr         string
	ProfilesDir    string
	SeedsDir       string
	DefaultProfile string
	Difficulty     Difficulty
	Offsets        inputs.Layout
	BLE            BLEConfig
	Serial         SerialConfig
}

var defaults = map[string]interface{}{
	"mode":               string(ModeTCP),
	"debug":              false,
	"tcp.addr":           ":9040",
	"ws.addr":            ":8080",
	"profiles.dir":       "./profiles",
	"profiles.seeds":     "./seeds",
	"profiles.default":   "default",
	"difficulty.factor":  inputs.GameLogicDivider,
	"difficulty.min":     1.0,
	"difficulty.max":     inputs.GameLogicDivider * 2,
	"layout.coarse1":     inputs.DefaultLayout.Coarse1,
	"layout.fine1":       inputs.DefaultLayout.Fine1,
	"layout.coarse2":     inputs.DefaultLayout.Coarse2,
	"layout.fine2":       inputs.DefaultLayout.Fine2,
	"layout.joystick":    inputs.DefaultLayout.Joystick,
	"ble.device":         "BaahBox",
	"ble.service":        "0000ffe0-0000-1000-8000-00805f9b34fb",
	"ble.characteristic": "0000ffe1-0000-1000-8000-00805f9b34fb",
	"serial.port":        "/dev/ttyACM0",
	"serial.baud":        9600,
}

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("baahbridge", pflag.ContinueOnError)
	flags.String("mode", string(ModeTCP), "run mode: tcp, mcp, ble or serial")
	flags.Bool("debug", false, "development logging")
	flags.String("tcp.addr", ":9040", "TCP bridge listen address")
	flags.String("ws.addr", ":8080", "websocket hub listen address, empty to disable")
	flags.String("profiles.dir", "./profiles", "firmware profile storage directory")
	flags.String("profiles.seeds", "./seeds", "layout scripts copied into storage on start")
	flags.Float64("difficulty.factor", inputs.GameLogicDivider, "difficulty factor")
	flags.String("ble.device", "BaahBox", "advertised local name of the sensor box")
	flags.String("serial.port", "/dev/ttyACM0", "serial port for wired boxes")
	return flags
}

// Load reads envFile (if present) into the environment, then resolves every
// key from flags, the environment and the defaults.
func Load(flags *pflag.FlagSet, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		Mode:           Mode(strings.ToLower(v.GetString("mode"))),
		Debug:          v.GetBool("debug"),
		TCPAddr:        v.GetString("tcp.addr"),
		WSAddr:         v.GetString("ws.addr"),
		ProfilesDir:    v.GetString("profiles.dir"),
		SeedsDir:       v.GetString("profiles.seeds"),
		DefaultProfile: v.GetString("profiles.default"),
		Difficulty: Difficulty{
			Factor: v.GetFloat64("difficulty.factor"),
			Min:    v.GetFloat64("difficulty.min"),
			Max:    v.GetFloat64("difficulty.max"),
		},
		Offsets: inputs.Layout{
			Coarse1:  v.GetInt("layout.coarse1"),
			Fine1:    v.GetInt("layout.fine1"),
			Coarse2:  v.GetInt("layout.coarse2"),
			Fine2:    v.GetInt("layout.fine2"),
			Joystick: v.GetInt("layout.joystick"),
		},
		BLE: BLEConfig{
			Device:         v.GetString("ble.device"),
			Service:        v.GetString("ble.service"),
			Characteristic: v.GetString("ble.characteristic"),
		},
		Serial: SerialConfig{
			Port: v.GetString("serial.port"),
			Baud: v.GetInt("serial.baud"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate refuses configurations the inputs package would reject at runtime.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeTCP, ModeMCP, ModeBLE, ModeSerial:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}

	d := c.Difficulty
	if err := inputs.ValidateFactor(d.Min); err != nil {
		return fmt.Errorf("config: difficulty.min: %w", err)
	}
	if d.Min > d.Max {
		return fmt.Errorf("config: difficulty.min %v is above difficulty.max %v", d.Min, d.Max)
	}
	if err := inputs.ValidateFactor(d.Factor); err != nil {
		return fmt.Errorf("config: difficulty.factor: %w", err)
	}
	if d.Factor < d.Min || d.Factor > d.Max {
		return fmt.Errorf("config: difficulty.factor %v outside [%v, %v]", d.Factor, d.Min, d.Max)
	}

	if err := c.Offsets.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DefaultProfile == "" {
		return errors.New("config: profiles.default is empty")
	}
	if c.Mode == ModeSerial && c.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial.baud must be positive, got %d", c.Serial.Baud)
	}
	return nil
}
