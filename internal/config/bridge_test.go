package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	c := &BridgeConfig{}

	if got := c.GetListenAddr(); got != ":50061" {
		t.Errorf("expected :50061, got %s", got)
	}
	if got := c.GetAdminAddr(); got != "localhost:8091" {
		t.Errorf("expected localhost:8091, got %s", got)
	}
	if got := c.GetFrameID(); got != "camera" {
		t.Errorf("expected camera, got %s", got)
	}
	if got := c.GetSensorID(); got != "visionary" {
		t.Errorf("expected visionary, got %s", got)
	}
	if got := c.GetFrameRate(); got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
	if c.GetWidth() != 176 || c.GetHeight() != 144 {
		t.Errorf("expected 176x144, got %dx%d", c.GetWidth(), c.GetHeight())
	}
	if got := c.GetSubscriberBuffer(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := c.GetMaxMessageBytes(); got != 16*1024*1024 {
		t.Errorf("expected 16MB, got %d", got)
	}
	if got := c.GetStatsInterval(); got != 30*time.Second {
		t.Errorf("expected 30s, got %v", got)
	}
	if got := c.GetDistanceScale(); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if c.HasMount() {
		t.Error("expected no mount")
	}
	if got := c.GetMountRotation(); got != (Quat{W: 1}) {
		t.Errorf("expected identity rotation, got %+v", got)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestEmptyAdminAddrDisables(t *testing.T) {
	c := &BridgeConfig{AdminAddr: ptrString("")}
	if got := c.GetAdminAddr(); got != "" {
		t.Errorf("expected empty admin addr, got %q", got)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "bridge.json", `{
		"listen_addr": "127.0.0.1:6000",
		"frame_rate": 15,
		"width": 64,
		"height": 48,
		"stats_interval": "5s",
		"mount": {"translation": {"x": 0.5, "y": 0, "z": 1.2}}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.GetListenAddr() != "127.0.0.1:6000" {
		t.Errorf("expected 127.0.0.1:6000, got %s", c.GetListenAddr())
	}
	if c.GetFrameRate() != 15 {
		t.Errorf("expected 15, got %v", c.GetFrameRate())
	}
	if c.GetStatsInterval() != 5*time.Second {
		t.Errorf("expected 5s, got %v", c.GetStatsInterval())
	}
	if !c.HasMount() {
		t.Fatal("expected mount")
	}
	if got := c.GetMountTranslation(); got != (Vec3{X: 0.5, Z: 1.2}) {
		t.Errorf("unexpected translation %+v", got)
	}
	if got := c.GetMountRotation(); got != (Quat{W: 1}) {
		t.Errorf("expected identity rotation, got %+v", got)
	}
	// Unset fields keep defaults.
	if c.GetSubscriberBuffer() != 4 {
		t.Errorf("expected default buffer, got %d", c.GetSubscriberBuffer())
	}
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"bridge.yaml", "bridge.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, `
frame_id: tof_link
subscriber_buffer: 8
mount:
  rotation: {x: 0, y: 0, z: 0.7071068, w: 0.7071068}
`)
			c, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if c.GetFrameID() != "tof_link" {
				t.Errorf("expected tof_link, got %s", c.GetFrameID())
			}
			if c.GetSubscriberBuffer() != 8 {
				t.Errorf("expected 8, got %d", c.GetSubscriberBuffer())
			}
			if r := c.GetMountRotation(); r.Z != 0.7071068 || r.W != 0.7071068 {
				t.Errorf("unexpected rotation %+v", r)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad extension", "bridge.toml", "frame_rate = 1", "extension"},
		{"bad json", "bridge.json", "{", "failed to parse"},
		{"bad yaml", "bridge.yaml", "frame_rate: [", "failed to parse"},
		{"invalid value", "bridge.json", `{"frame_rate": 0}`, "frame_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsLargeFile(t *testing.T) {
	path := writeFile(t, "big.json", `{"sensor_id": "`+strings.Repeat("x", maxFileSize)+`"}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BridgeConfig
		wantErr bool
	}{
		{"negative rate", BridgeConfig{FrameRate: ptrFloat64(-1)}, true},
		{"huge rate", BridgeConfig{FrameRate: ptrFloat64(5000)}, true},
		{"zero width", BridgeConfig{Width: ptrInt(0)}, true},
		{"tall frame", BridgeConfig{Height: ptrInt(10000)}, true},
		{"zero scale", BridgeConfig{DistanceScale: ptrFloat64(0)}, true},
		{"zero buffer", BridgeConfig{SubscriberBuffer: ptrInt(0)}, true},
		{"tiny messages", BridgeConfig{MaxMessageBytes: ptrInt(100)}, true},
		{"cloud does not fit", BridgeConfig{MaxMessageBytes: ptrInt(64 * 1024)}, true},
		{"cloud fits", BridgeConfig{Width: ptrInt(16), Height: ptrInt(16), MaxMessageBytes: ptrInt(64 * 1024)}, false},
		{"bad interval", BridgeConfig{StatsInterval: ptrString("soon")}, true},
		{"negative interval", BridgeConfig{StatsInterval: ptrString("-1s")}, true},
		{"zero interval", BridgeConfig{StatsInterval: ptrString("0s")}, false},
		{"nan translation", BridgeConfig{Mount: &MountConfig{Translation: &Vec3{X: math.NaN()}}}, true},
		{"inf rotation", BridgeConfig{Mount: &MountConfig{Rotation: &Quat{W: math.Inf(1)}}}, true},
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

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	file := MustLoadDefaultConfig()
	empty := &BridgeConfig{}

	if file.GetListenAddr() != empty.GetListenAddr() {
		t.Errorf("listen_addr: file %s, default %s", file.GetListenAddr(), empty.GetListenAddr())
	}
	if file.GetAdminAddr() != empty.GetAdminAddr() {
		t.Errorf("admin_addr: file %s, default %s", file.GetAdminAddr(), empty.GetAdminAddr())
	}
	if file.GetFrameRate() != empty.GetFrameRate() {
		t.Errorf("frame_rate: file %v, default %v", file.GetFrameRate(), empty.GetFrameRate())
	}
	if file.GetWidth() != empty.GetWidth() || file.GetHeight() != empty.GetHeight() {
		t.Errorf("size: file %dx%d, default %dx%d", file.GetWidth(), file.GetHeight(), empty.GetWidth(), empty.GetHeight())
	}
	if file.GetMaxMessageBytes() != empty.GetMaxMessageBytes() {
		t.Errorf("max_message_bytes: file %d, default %d", file.GetMaxMessageBytes(), empty.GetMaxMessageBytes())
	}
	if file.GetStatsInterval() != empty.GetStatsInterval() {
		t.Errorf("stats_interval: file %v, default %v", file.GetStatsInterval(), empty.GetStatsInterval())
	}
}
