package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSonarConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "min_distance": 2.5,
  "min_intensity": 60,
  "threshold": 45,
  "queue": 20,
  "frame": "base_link",
  "rate": 15,
  "speed": 2.0,
  "udp_target": "10.0.0.5:9999",
  "kafka_enabled": true,
  "debug": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSonarConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMinDistance() != 2.5 {
		t.Errorf("GetMinDistance() = %v, want 2.5", cfg.GetMinDistance())
	}
	if cfg.GetMinIntensity() != 60 {
		t.Errorf("GetMinIntensity() = %v, want 60", cfg.GetMinIntensity())
	}
	if cfg.GetThreshold() != 45 {
		t.Errorf("GetThreshold() = %v, want 45", cfg.GetThreshold())
	}
	if cfg.GetQueue() != 20 {
		t.Errorf("GetQueue() = %v, want 20", cfg.GetQueue())
	}
	if cfg.GetFrame() != "base_link" {
		t.Errorf("GetFrame() = %q, want %q", cfg.GetFrame(), "base_link")
	}
	if cfg.GetRate() != 15 {
		t.Errorf("GetRate() = %v, want 15", cfg.GetRate())
	}
	if cfg.GetSpeed() != 2.0 {
		t.Errorf("GetSpeed() = %v, want 2.0", cfg.GetSpeed())
	}
	if cfg.GetUDPTarget() != "10.0.0.5:9999" {
		t.Errorf("GetUDPTarget() = %q, want %q", cfg.GetUDPTarget(), "10.0.0.5:9999")
	}
	if !cfg.GetKafkaEnabled() {
		t.Error("GetKafkaEnabled() = false, want true")
	}
	if !cfg.GetDebug() {
		t.Error("GetDebug() = false, want true")
	}
}

func TestLoadSonarConfigPartial(t *testing.T) {
	// Partial config: only override the threshold; everything else should
	// keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "threshold": 55
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSonarConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetThreshold() != 55 {
		t.Errorf("Expected overridden Threshold 55, got %v", cfg.GetThreshold())
	}
	if cfg.GetMinDistance() != 1.0 {
		t.Errorf("Expected default MinDistance 1.0, got %v", cfg.GetMinDistance())
	}
	if cfg.GetMinIntensity() != 50 {
		t.Errorf("Expected default MinIntensity 50, got %v", cfg.GetMinIntensity())
	}
	if cfg.GetQueue() != 10 {
		t.Errorf("Expected default Queue 10, got %d", cfg.GetQueue())
	}
	if cfg.GetRate() != 30 {
		t.Errorf("Expected default Rate 30, got %v", cfg.GetRate())
	}
	if cfg.GetSpeed() != 1.0 {
		t.Errorf("Expected default Speed 1.0, got %v", cfg.GetSpeed())
	}
	if cfg.GetFrame() != "odom" {
		t.Errorf("Expected default Frame odom, got %q", cfg.GetFrame())
	}
}

func TestLoadSonarConfigMissing(t *testing.T) {
	_, err := LoadSonarConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadSonarConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "threshold": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadSonarConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadSonarConfigRejectsUnknownKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "typo.json")

	typoJSON := `{
  "treshold": 55
}`
	if err := os.WriteFile(configPath, []byte(typoJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadSonarConfig(configPath)
	if err == nil {
		t.Error("Expected error for unknown key, got nil")
	}
}

func TestLoadSonarConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadSonarConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadSonarConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadSonarConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SonarConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     EmptySonarConfig(),
			wantErr: false,
		},
		{
			name: "full config is valid",
			cfg: &SonarConfig{
				MinDistance:  ptrFloat64(1),
				MinIntensity: ptrFloat64(50),
				Threshold:    ptrFloat64(0.5),
				Queue:        ptrInt(10),
				Rate:         ptrFloat64(30),
				Speed:        ptrFloat64(1),
				Frame:        ptrString("odom"),
			},
			wantErr: false,
		},
		{
			name:    "negative min_distance",
			cfg:     &SonarConfig{MinDistance: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "negative min_intensity",
			cfg:     &SonarConfig{MinIntensity: ptrFloat64(-5)},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			cfg:     &SonarConfig{Threshold: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "negative queue",
			cfg:     &SonarConfig{Queue: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "zero queue is valid",
			cfg:     &SonarConfig{Queue: ptrInt(0)},
			wantErr: false,
		},
		{
			name:    "zero rate",
			cfg:     &SonarConfig{Rate: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative speed",
			cfg:     &SonarConfig{Speed: ptrFloat64(-2)},
			wantErr: true,
		},
		{
			name:    "zero speed is valid",
			cfg:     &SonarConfig{Speed: ptrFloat64(0)},
			wantErr: false,
		},
		{
			name:    "empty frame",
			cfg:     &SonarConfig{Frame: ptrString("")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptySonarConfig()

	if cfg.GetMinDistance() != 1.0 {
		t.Errorf("GetMinDistance() = %v, want 1.0", cfg.GetMinDistance())
	}
	if cfg.GetMinIntensity() != 50 {
		t.Errorf("GetMinIntensity() = %v, want 50", cfg.GetMinIntensity())
	}
	if cfg.GetThreshold() != 0.5 {
		t.Errorf("GetThreshold() = %v, want 0.5", cfg.GetThreshold())
	}
	if cfg.GetQueue() != 10 {
		t.Errorf("GetQueue() = %d, want 10", cfg.GetQueue())
	}
	if cfg.GetFrame() != "odom" {
		t.Errorf("GetFrame() = %q, want %q", cfg.GetFrame(), "odom")
	}
	if cfg.GetRate() != 30 {
		t.Errorf("GetRate() = %v, want 30", cfg.GetRate())
	}
	if cfg.GetSpeed() != 1.0 {
		t.Errorf("GetSpeed() = %v, want 1.0", cfg.GetSpeed())
	}
	if cfg.GetUDPTarget() != "" {
		t.Errorf("GetUDPTarget() = %q, want empty", cfg.GetUDPTarget())
	}
	if cfg.GetKafkaEnabled() {
		t.Error("GetKafkaEnabled() = true, want false")
	}
	if cfg.GetInfluxEnabled() {
		t.Error("GetInfluxEnabled() = true, want false")
	}
	if cfg.GetInfluxURL() != "http://localhost:8086" {
		t.Errorf("GetInfluxURL() = %q, want default", cfg.GetInfluxURL())
	}
	if cfg.GetInfluxBucket() != "sonar" {
		t.Errorf("GetInfluxBucket() = %q, want %q", cfg.GetInfluxBucket(), "sonar")
	}
	if cfg.GetDebug() {
		t.Error("GetDebug() = true, want false")
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadSonarConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetMinIntensity() != 50 {
		t.Errorf("Expected 50, got %v", cfg.GetMinIntensity())
	}
	if cfg.GetQueue() != 10 {
		t.Errorf("Expected 10, got %d", cfg.GetQueue())
	}
}
