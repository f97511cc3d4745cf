package config

import "time"

// DefaultClasses is the label set the hosted eye-disease model reports.
var DefaultClasses = []string{"bulging_eyes", "cataract", "crossed_eye", "glaucoma", "uveitis"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			StaticDir:      "./web",
			AllowedOrigins: []string{"*"},
			Websocket:      true,
		},
		Inference: InferenceConfig{
			APIURL:  "https://detect.roboflow.com",
			ModelID: "eye-disease-svz00/6",
			Timeout: 30 * time.Second,
			MaxSide: 2048,
		},
		Detection: DetectionConfig{
			Classes:     append([]string(nil), DefaultClasses...),
			ClassPolicy: ClassPolicyWhitelist,
		},
		Security: SecurityConfig{
			MaxFileSize:    10 * 1024 * 1024,
			MaxPixels:      40_000_000,
			MaxWidth:       8192,
			MaxHeight:      8192,
			AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif", "bmp"},
			EnableDeepScan: true,
		},
	}
}
