package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port"`
		AllowOrigins []string `yaml:"allowOrigins"`
	} `yaml:"server"`

	Database struct {
		URI string `yaml:"uri"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	Gemini struct {
		ApiKey                string `yaml:"apiKey"`
		ReplyTimeoutSeconds   int    `yaml:"replyTimeoutSeconds"`
		VerdictTimeoutSeconds int    `yaml:"verdictTimeoutSeconds"`
	} `yaml:"gemini"`

	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	Session struct {
		AllowedRounds []int `yaml:"allowedRounds"`
		DefaultRounds int   `yaml:"defaultRounds"`
		GuestOpen     bool  `yaml:"guestOpen"`
	} `yaml:"session"`

	Reaper struct {
		SweepMinutes     int `yaml:"sweepMinutes"`
		ThresholdMinutes int `yaml:"thresholdMinutes"`
	} `yaml:"reaper"`
}

// LoadConfig reads the configuration file and fills in defaults for
// anything the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:5173"}
	}
	if c.Gemini.ReplyTimeoutSeconds == 0 {
		c.Gemini.ReplyTimeoutSeconds = 20
	}
	if c.Gemini.VerdictTimeoutSeconds == 0 {
		c.Gemini.VerdictTimeoutSeconds = 30
	}
	if len(c.Session.AllowedRounds) == 0 {
		c.Session.AllowedRounds = []int{3, 6, 8}
	}
	if c.Session.DefaultRounds == 0 {
		c.Session.DefaultRounds = c.Session.AllowedRounds[0]
	}
	if c.Reaper.SweepMinutes == 0 {
		c.Reaper.SweepMinutes = 5
	}
	if c.Reaper.ThresholdMinutes == 0 {
		c.Reaper.ThresholdMinutes = 15
	}
}

func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.Gemini.ReplyTimeoutSeconds) * time.Second
}

func (c *Config) VerdictTimeout() time.Duration {
	return time.Duration(c.Gemini.VerdictTimeoutSeconds) * time.Second
}

func (c *Config) ReaperSweep() time.Duration {
	return time.Duration(c.Reaper.SweepMinutes) * time.Minute
}

func (c *Config) ReaperThreshold() time.Duration {
	return time.Duration(c.Reaper.ThresholdMinutes) * time.Minute
}
