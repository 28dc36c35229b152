// Package config loads the swarm host configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration struct
type Config struct {
	Swarm       SwarmConfig       `mapstructure:"swarm"`
	Steering    SteeringConfig    `mapstructure:"steering"`
	Oscillation OscillationConfig `mapstructure:"oscillation"`
	Viewport    RectConfig        `mapstructure:"viewport"`
	Anchor      RectConfig        `mapstructure:"anchor"`
	Loop        LoopConfig        `mapstructure:"loop"`
	Server      ServerConfig      `mapstructure:"server"`
	Recording   RecordingConfig   `mapstructure:"recording"`
}

// SwarmConfig holds the population settings
type SwarmConfig struct {
	Count       int     `mapstructure:"count"`
	AgentWidth  float64 `mapstructure:"agentWidth"`
	AgentHeight float64 `mapstructure:"agentHeight"`
	Speed       float64 `mapstructure:"speed"`
	Seed        int64   `mapstructure:"seed"` // 0 seeds from the clock
}

// SteeringConfig holds the per-agent update tuning
type SteeringConfig struct {
	TurnRate        float64 `mapstructure:"turnRate"`
	MinComfortable  float64 `mapstructure:"minComfortable"`
	MaxComfortable  float64 `mapstructure:"maxComfortable"`
	InfluenceRadius float64 `mapstructure:"influenceRadius"`
}

// OscillationConfig holds the scatter/home calibration
type OscillationConfig struct {
	MinDuration   time.Duration `mapstructure:"minDuration"`
	MaxDuration   time.Duration `mapstructure:"maxDuration"`
	LowEndWidth   float64       `mapstructure:"lowEndWidth"`
	LowEndHeight  float64       `mapstructure:"lowEndHeight"`
	HighEndWidth  float64       `mapstructure:"highEndWidth"`
	HighEndHeight float64       `mapstructure:"highEndHeight"`
	ScatterPolicy string        `mapstructure:"scatterPolicy"`
}

// RectConfig is an axis-aligned rectangle in page pixels
type RectConfig struct {
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// LoopConfig holds the frame clock settings
type LoopConfig struct {
	FrameRate     int `mapstructure:"frameRate"`
	BroadcastRate int `mapstructure:"broadcastRate"`
}

// ServerConfig holds the HTTP endpoint
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// RecordingConfig holds the trajectory recorder settings
type RecordingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Every   int    `mapstructure:"every"`
}

// Load reads configuration from .env, file and environment. Environment
// variables use the SWARM_ prefix, e.g. SWARM_SWARM_COUNT.
func Load(cfgFile string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("swarm.count", 30)
	v.SetDefault("swarm.agentWidth", 10.0)
	v.SetDefault("swarm.agentHeight", 10.0)
	v.SetDefault("swarm.speed", 3.0)
	v.SetDefault("swarm.seed", 0)
	v.SetDefault("steering.turnRate", 0.05)
	v.SetDefault("steering.minComfortable", 6.0)
	v.SetDefault("steering.maxComfortable", 30.0)
	v.SetDefault("steering.influenceRadius", 300.0)
	v.SetDefault("oscillation.minDuration", 5*time.Second)
	v.SetDefault("oscillation.maxDuration", 15*time.Second)
	v.SetDefault("oscillation.lowEndWidth", 320.0)
	v.SetDefault("oscillation.lowEndHeight", 695.0)
	v.SetDefault("oscillation.highEndWidth", 2560.0)
	v.SetDefault("oscillation.highEndHeight", 1245.0)
	v.SetDefault("oscillation.scatterPolicy", "origin")
	v.SetDefault("viewport.width", 1280.0)
	v.SetDefault("viewport.height", 720.0)
	v.SetDefault("anchor.x", 560.0)
	v.SetDefault("anchor.y", 40.0)
	v.SetDefault("anchor.width", 160.0)
	v.SetDefault("anchor.height", 90.0)
	v.SetDefault("loop.frameRate", 60)
	v.SetDefault("loop.broadcastRate", 30)
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.path", "/tmp/swarm-frames")
	v.SetDefault("recording.every", 10)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("swarm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the host cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Swarm.Count < 0:
		return fmt.Errorf("swarm.count must be >= 0, got %d", c.Swarm.Count)
	case c.Swarm.AgentWidth <= 0 || c.Swarm.AgentHeight <= 0:
		return fmt.Errorf("swarm agent dimensions must be > 0")
	case c.Steering.TurnRate < 0 || c.Steering.TurnRate > 1:
		return fmt.Errorf("steering.turnRate must be within [0, 1], got %g", c.Steering.TurnRate)
	case c.Steering.MinComfortable > c.Steering.MaxComfortable:
		return fmt.Errorf("steering.minComfortable (%g) exceeds maxComfortable (%g)",
			c.Steering.MinComfortable, c.Steering.MaxComfortable)
	case c.Oscillation.MinDuration <= 0 || c.Oscillation.MaxDuration < c.Oscillation.MinDuration:
		return fmt.Errorf("oscillation durations must satisfy 0 < min <= max")
	case c.Loop.FrameRate <= 0:
		return fmt.Errorf("loop.frameRate must be > 0, got %d", c.Loop.FrameRate)
	case c.Loop.BroadcastRate <= 0 || c.Loop.BroadcastRate > c.Loop.FrameRate:
		return fmt.Errorf("loop.broadcastRate must be within (0, frameRate]")
	case c.Recording.Enabled && c.Recording.Every <= 0:
		return fmt.Errorf("recording.every must be > 0")
	}
	switch c.Oscillation.ScatterPolicy {
	case "origin", "random":
	default:
		return fmt.Errorf("unknown oscillation.scatterPolicy %q", c.Oscillation.ScatterPolicy)
	}
	return nil
}
