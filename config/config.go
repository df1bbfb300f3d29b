// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets TOML carry values like "500ms" or "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Pilot struct {
	Gain   float64
	Tick   Duration
	Settle Duration
}

type Base struct {
	Link        string
	ReverseLeft bool `toml:"reverse_left"`
	Brake       bool
	MmPerRev    float64 `toml:"mm_per_rev"`
	LowBatPin   string  `toml:"low_battery_pin"`
}

type IMU struct {
	Addr         int
	ReadyTimeout Duration `toml:"ready_timeout"`
}

type Camera struct {
	Width  int
	Height int
	FPS    int
	HFlip  bool
	VFlip  bool
}

// Target is the chroma window the finder looks for. Cb/Cr are the window
// centre, Window the half-width on each axis.
type Target struct {
	Cb        int
	Cr        int
	Window    int
	MinPixels int `toml:"min_pixels"`
	Band      int
}

type Approach struct {
	KP    float64
	KI    float64
	KD    float64
	Power float64
	Seek  float64
}

type Claw struct {
	Fitted bool
	Open   float64
	Closed float64
}

type Telemetry struct {
	Listen string
}

type Blackbox struct {
	Enabled bool
	Path    string
}

type Config struct {
	Pilot     Pilot
	Base      Base
	IMU       IMU
	Camera    Camera
	Target    Target
	Approach  Approach
	Claw      Claw
	Tunes     string
	Telemetry Telemetry
	Blackbox  Blackbox
}

func Default() *Config {
	return &Config{
		Pilot: Pilot{
			Gain:   0.1,
			Tick:   Duration{10 * time.Millisecond},
			Settle: Duration{500 * time.Millisecond},
		},
		Base: Base{
			Link:        "/tmp/sock",
			ReverseLeft: true,
			Brake:       true,
			MmPerRev:    100 * 3.14159,
			LowBatPin:   "GPIO27",
		},
		IMU: IMU{
			Addr:         0x29,
			ReadyTimeout: Duration{5 * time.Second},
		},
		Camera: Camera{
			Width:  64,
			Height: 64,
			FPS:    60,
			HFlip:  true,
			VFlip:  true,
		},
		Target: Target{
			Cb:        190,
			Cr:        105,
			Window:    45,
			MinPixels: 20,
			Band:      2,
		},
		Approach: Approach{
			KP:    0.8,
			KI:    0.0,
			KD:    0.1,
			Power: 0.3,
			Seek:  0.15,
		},
		Claw: Claw{
			Fitted: false,
			Open:   0.15,
			Closed: 0.85,
		},
		Tunes: "/home/pi/audio/midi/tunes.toml",
		Telemetry: Telemetry{
			Listen: ":1234",
		},
		Blackbox: Blackbox{
			Enabled: false,
			Path:    "skybot.db",
		},
	}
}

// Load reads path over the defaults. An empty path just returns the
// defaults, a missing or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
