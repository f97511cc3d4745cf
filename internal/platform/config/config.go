package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Inference InferenceConfig `yaml:"inference"`
	Detection DetectionConfig `yaml:"detection"`
	Security  SecurityConfig  `yaml:"security"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Websocket      bool     `yaml:"websocket"`
}

// InferenceConfig addresses the hosted detection model.
type InferenceConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	ModelID string        `yaml:"model_id"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxSide is the longest edge sent upstream; larger images are downscaled.
	MaxSide int `yaml:"max_side"`
	// Confidence and Overlap are forwarded as query parameters when non-zero.
	Confidence float64 `yaml:"confidence"`
	Overlap    float64 `yaml:"overlap"`
}

// Class policies for predictions whose label is outside Detection.Classes.
const (
	ClassPolicyWhitelist   = "whitelist"
	ClassPolicyPassthrough = "passthrough"
)

type DetectionConfig struct {
	Classes     []string `yaml:"classes"`
	ClassPolicy string   `yaml:"class_policy"`
}

type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}
