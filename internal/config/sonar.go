package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
// This is the single source of truth for all default pipeline values.
const DefaultConfigPath = "config/sonar.defaults.json"

// SonarConfig represents the root configuration for the sonar pipeline:
// return selection, scan windowing, replay pacing, and transport targets.
// Fields are pointers so a partial file overrides only what it names; the
// Get* accessors supply defaults for everything else.
type SonarConfig struct {
	// Return selection params
	MinDistance  *float64 `json:"min_distance,omitempty"`  // meters; bins nearer than this are masked
	MinIntensity *float64 `json:"min_intensity,omitempty"` // bins at or below this are masked
	Threshold    *float64 `json:"threshold,omitempty"`     // nearest masked value above this wins outright

	// Scan windowing params
	Queue *int    `json:"queue,omitempty"` // slices per windowed scan; 0 selects the whole buffer
	Frame *string `json:"frame,omitempty"` // coordinate frame stamped on outputs

	// Replay params
	Rate  *float64 `json:"rate,omitempty"`  // records per second
	Speed *float64 `json:"speed,omitempty"` // pacing multiplier; 0 disables pacing

	// Transport params
	UDPTarget     *string `json:"udp_target,omitempty"`     // host:port; empty disables the UDP publisher
	KafkaEnabled  *bool   `json:"kafka_enabled,omitempty"`  // broker settings come from the environment
	InfluxEnabled *bool   `json:"influx_enabled,omitempty"` // periodic pipeline stats to InfluxDB
	InfluxURL     *string `json:"influx_url,omitempty"`
	InfluxToken   *string `json:"influx_token,omitempty"`
	InfluxOrg     *string `json:"influx_org,omitempty"`
	InfluxBucket  *string `json:"influx_bucket,omitempty"`

	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySonarConfig returns a SonarConfig with all fields set to nil.
// Use LoadSonarConfig to load actual values from a file.
func EmptySonarConfig() *SonarConfig {
	return &SonarConfig{}
}

// LoadSonarConfig loads a SonarConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe; unknown keys are rejected so typos
// fail loudly instead of silently keeping a default.
func LoadSonarConfig(path string) (*SonarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySonarConfig()
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SonarConfig) Validate() error {
	if c.MinDistance != nil && *c.MinDistance < 0 {
		return fmt.Errorf("min_distance must be non-negative, got %f", *c.MinDistance)
	}
	if c.MinIntensity != nil && *c.MinIntensity < 0 {
		return fmt.Errorf("min_intensity must be non-negative, got %f", *c.MinIntensity)
	}
	if c.Threshold != nil && *c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %f", *c.Threshold)
	}
	if c.Queue != nil && *c.Queue < 0 {
		return fmt.Errorf("queue must be non-negative, got %d", *c.Queue)
	}
	if c.Rate != nil && *c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %f", *c.Rate)
	}
	if c.Speed != nil && *c.Speed < 0 {
		return fmt.Errorf("speed must be non-negative, got %f", *c.Speed)
	}
	if c.Frame != nil && *c.Frame == "" {
		return fmt.Errorf("frame must not be empty when set")
	}
	return nil
}

// GetMinDistance returns the min_distance value or the default.
func (c *SonarConfig) GetMinDistance() float64 {
	if c.MinDistance == nil {
		return 1.0 // default
	}
	return *c.MinDistance
}

// GetMinIntensity returns the min_intensity value or the default.
func (c *SonarConfig) GetMinIntensity() float64 {
	if c.MinIntensity == nil {
		return 50 // default
	}
	return *c.MinIntensity
}

// GetThreshold returns the threshold value or the default.
func (c *SonarConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return 0.5 // default
	}
	return *c.Threshold
}

// GetQueue returns the queue value or the default.
func (c *SonarConfig) GetQueue() int {
	if c.Queue == nil {
		return 10 // default
	}
	return *c.Queue
}

// GetFrame returns the frame value or the default.
func (c *SonarConfig) GetFrame() string {
	if c.Frame == nil || *c.Frame == "" {
		return "odom" // default
	}
	return *c.Frame
}

// GetRate returns the rate value or the default.
func (c *SonarConfig) GetRate() float64 {
	if c.Rate == nil {
		return 30 // default, records per second
	}
	return *c.Rate
}

// GetSpeed returns the speed value or the default.
func (c *SonarConfig) GetSpeed() float64 {
	if c.Speed == nil {
		return 1.0 // default, real time
	}
	return *c.Speed
}

// GetUDPTarget returns the udp_target value or the default (disabled).
func (c *SonarConfig) GetUDPTarget() string {
	if c.UDPTarget == nil {
		return ""
	}
	return *c.UDPTarget
}

// GetKafkaEnabled returns the kafka_enabled value or the default.
func (c *SonarConfig) GetKafkaEnabled() bool {
	if c.KafkaEnabled == nil {
		return false // default: Kafka publishing disabled
	}
	return *c.KafkaEnabled
}

// GetInfluxEnabled returns the influx_enabled value or the default.
func (c *SonarConfig) GetInfluxEnabled() bool {
	if c.InfluxEnabled == nil {
		return false // default: stats sink disabled
	}
	return *c.InfluxEnabled
}

// GetInfluxURL returns the influx_url value or the default.
func (c *SonarConfig) GetInfluxURL() string {
	if c.InfluxURL == nil || *c.InfluxURL == "" {
		return "http://localhost:8086"
	}
	return *c.InfluxURL
}

// GetInfluxToken returns the influx_token value or the default.
func (c *SonarConfig) GetInfluxToken() string {
	if c.InfluxToken == nil {
		return ""
	}
	return *c.InfluxToken
}

// GetInfluxOrg returns the influx_org value or the default.
func (c *SonarConfig) GetInfluxOrg() string {
	if c.InfluxOrg == nil {
		return ""
	}
	return *c.InfluxOrg
}

// GetInfluxBucket returns the influx_bucket value or the default.
func (c *SonarConfig) GetInfluxBucket() string {
	if c.InfluxBucket == nil || *c.InfluxBucket == "" {
		return "sonar"
	}
	return *c.InfluxBucket
}

// GetDebug returns the debug value or the default.
func (c *SonarConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
