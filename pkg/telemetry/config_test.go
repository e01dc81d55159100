package telemetry

import (
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, true},
		{"bad sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// None of these should panic on the no-op instance.
	m.RecordContextProcessed("resolved", time.Millisecond)
	m.RecordArtifactWritten("index")
	m.RecordPacksResolved(3)
	if err := m.Dump(); err != nil {
		t.Errorf("Dump on disabled metrics returned error: %v", err)
	}
}

func TestMetricsDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smith.prom")
	m, err := NewMetrics(MetricsConfig{
		Enabled:      true,
		Namespace:    "smith",
		TextfilePath: path,
	})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordContextProcessed("resolved", 10*time.Millisecond)
	m.RecordContextProcessed("failed", 5*time.Millisecond)
	m.RecordArtifactWritten("pack-lock")

	if err := m.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
}
