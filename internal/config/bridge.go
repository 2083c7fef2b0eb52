// Package config loads the bridge configuration.
//
// Every field is optional. Unset fields fall back to the defaults returned by
// the Get* accessors, so a partial file is always safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the checked-in defaults file.
const DefaultConfigPath = "config/bridge.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Vec3 is a translation in metres.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Quat is a rotation quaternion in x, y, z, w order.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// MountConfig places the sensor relative to the world frame.
type MountConfig struct {
	Translation *Vec3 `json:"translation,omitempty" yaml:"translation,omitempty"`
	Rotation    *Quat `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// BridgeConfig is the root configuration.
type BridgeConfig struct {
	// Network
	ListenAddr *string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	AdminAddr  *string `json:"admin_addr,omitempty" yaml:"admin_addr,omitempty"`

	// Identity stamped on records
	SensorID *string `json:"sensor_id,omitempty" yaml:"sensor_id,omitempty"`
	FrameID  *string `json:"frame_id,omitempty" yaml:"frame_id,omitempty"`

	// Frame source
	FrameRate     *float64 `json:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
	Width         *int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height        *int     `json:"height,omitempty" yaml:"height,omitempty"`
	DistanceScale *float64 `json:"distance_scale,omitempty" yaml:"distance_scale,omitempty"` // mm per count

	// Transport
	SubscriberBuffer *int `json:"subscriber_buffer,omitempty" yaml:"subscriber_buffer,omitempty"`
	MaxMessageBytes  *int `json:"max_message_bytes,omitempty" yaml:"max_message_bytes,omitempty"`

	StatsInterval *string `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"` // duration like "30s"

	Mount *MountConfig `json:"mount,omitempty" yaml:"mount,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// Load reads a .json, .yaml or .yml file and validates it.
func Load(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &BridgeConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. Intended for tests.
func MustLoadDefaultConfig() *BridgeConfig {
	for _, prefix := range []string{"", "../", "../../", "../../../"} {
		if cfg, err := Load(prefix + DefaultConfigPath); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *BridgeConfig) Validate() error {
	if c.FrameRate != nil {
		if r := *c.FrameRate; math.IsNaN(r) || r <= 0 || r > 1000 {
			return fmt.Errorf("frame_rate must be in (0, 1000], got %v", r)
		}
	}
	if c.Width != nil && (*c.Width <= 0 || *c.Width > 4096) {
		return fmt.Errorf("width must be in [1, 4096], got %d", *c.Width)
	}
	if c.Height != nil && (*c.Height <= 0 || *c.Height > 4096) {
		return fmt.Errorf("height must be in [1, 4096], got %d", *c.Height)
	}
	if c.DistanceScale != nil {
		if s := *c.DistanceScale; math.IsNaN(s) || s <= 0 {
			return fmt.Errorf("distance_scale must be positive, got %v", s)
		}
	}
	if c.SubscriberBuffer != nil && *c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", *c.SubscriberBuffer)
	}
	if c.MaxMessageBytes != nil && *c.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be at least 1024, got %d", *c.MaxMessageBytes)
	}
	// A full point cloud (14 bytes per pixel) plus headers must fit in one message.
	if need := c.GetWidth()*c.GetHeight()*14 + 4096; c.GetMaxMessageBytes() < need {
		return fmt.Errorf("max_message_bytes %d cannot carry a %dx%d point cloud (need %d)",
			c.GetMaxMessageBytes(), c.GetWidth(), c.GetHeight(), need)
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		d, err := time.ParseDuration(*c.StatsInterval)
		if err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("stats_interval must be non-negative, got %s", d)
		}
	}
	if c.Mount != nil {
		if t := c.Mount.Translation; t != nil && !finite(t.X, t.Y, t.Z) {
			return fmt.Errorf("mount translation must be finite")
		}
		if r := c.Mount.Rotation; r != nil && !finite(r.X, r.Y, r.Z, r.W) {
			return fmt.Errorf("mount rotation must be finite")
		}
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// GetListenAddr returns the gRPC listen address.
func (c *BridgeConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":50061"
	}
	return *c.ListenAddr
}

// GetAdminAddr returns the admin HTTP address. An explicit empty string
// disables the admin server.
func (c *BridgeConfig) GetAdminAddr() string {
	if c.AdminAddr == nil {
		return "localhost:8091"
	}
	return *c.AdminAddr
}

// GetSensorID returns the sensor name used in logs.
func (c *BridgeConfig) GetSensorID() string {
	if c.SensorID == nil || *c.SensorID == "" {
		return "visionary"
	}
	return *c.SensorID
}

// GetFrameID returns the coordinate frame stamped on records.
func (c *BridgeConfig) GetFrameID() string {
	if c.FrameID == nil || *c.FrameID == "" {
		return "camera"
	}
	return *c.FrameID
}

// GetFrameRate returns frames per second.
func (c *BridgeConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 30
	}
	return *c.FrameRate
}

// GetWidth returns the frame width in pixels.
func (c *BridgeConfig) GetWidth() int {
	if c.Width == nil {
		return 176
	}
	return *c.Width
}

// GetHeight returns the frame height in pixels.
func (c *BridgeConfig) GetHeight() int {
	if c.Height == nil {
		return 144
	}
	return *c.Height
}

// GetDistanceScale returns millimetres per distance count.
func (c *BridgeConfig) GetDistanceScale() float64 {
	if c.DistanceScale == nil {
		return 1
	}
	return *c.DistanceScale
}

// GetSubscriberBuffer returns the per-subscriber queue depth.
func (c *BridgeConfig) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 4
	}
	return *c.SubscriberBuffer
}

// GetMaxMessageBytes returns the gRPC message size limit.
func (c *BridgeConfig) GetMaxMessageBytes() int {
	if c.MaxMessageBytes == nil {
		return 16 * 1024 * 1024
	}
	return *c.MaxMessageBytes
}

// GetStatsInterval returns how often statistics are logged. Zero disables
// periodic logging.
func (c *BridgeConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// HasMount reports whether a mount pose is configured.
func (c *BridgeConfig) HasMount() bool {
	return c.Mount != nil && (c.Mount.Translation != nil || c.Mount.Rotation != nil)
}

// GetMountTranslation returns the mount offset in metres.
func (c *BridgeConfig) GetMountTranslation() Vec3 {
	if c.Mount == nil || c.Mount.Translation == nil {
		return Vec3{}
	}
	return *c.Mount.Translation
}

// GetMountRotation returns the mount rotation, identity when unset.
func (c *BridgeConfig) GetMountRotation() Quat {
	if c.Mount == nil || c.Mount.Rotation == nil {
		return Quat{W: 1}
	}
	return *c.Mount.Rotation
}
