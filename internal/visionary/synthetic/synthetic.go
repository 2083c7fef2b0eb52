// Package synthetic generates stand-in sensor frames for demos and tests.
// Frames are a pure function of the sequence number, so a run can be
// replayed exactly.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/timeutil"
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

var logf = monitoring.Tagged("Synthetic")

// MaxFrameRate bounds Config.FrameRate so the tick interval stays positive.
const MaxFrameRate = 1e6

// Config sizes the generated frames.
type Config struct {
	Width     int
	Height    int
	FrameRate float64 // frames per second
	FrameID   string  // coordinate frame name stamped on every record
}

// DefaultConfig matches a small time-of-flight sensor running at 30 Hz.
func DefaultConfig() Config {
	return Config{Width: 176, Height: 144, FrameRate: 30, FrameID: "camera"}
}

// Generator produces consecutive frames.
type Generator struct {
	cfg Config
	seq atomic.Uint64
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("synthetic: invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FrameRate <= 0 || math.IsInf(cfg.FrameRate, 0) || math.IsNaN(cfg.FrameRate) {
		return nil, fmt.Errorf("synthetic: invalid frame rate %v", cfg.FrameRate)
	}
	if cfg.FrameRate > MaxFrameRate {
		return nil, fmt.Errorf("synthetic: frame rate %v exceeds %v Hz", cfg.FrameRate, MaxFrameRate)
	}
	return &Generator{cfg: cfg}, nil
}

// Interval is the time between frames.
func (g *Generator) Interval() time.Duration {
	return time.Duration(float64(time.Second) / g.cfg.FrameRate)
}

// Next returns the next frame and its shared metadata, stamped at now.
func (g *Generator) Next(now time.Time) (records.Header, *frame.SensorFrame) {
	seq := g.seq.Add(1)
	meta := records.Header{Stamp: now, FrameID: g.cfg.FrameID, Seq: seq}
	return meta, Frame(g.cfg.Width, g.cfg.Height, seq)
}

// Frame builds frame number seq. A tilted plane sweeps back and forth in
// front of the sensor; the four corner pixels report no return.
func Frame(w, h int, seq uint64) *frame.SensorFrame {
	n := w * h
	phase := float64(seq%360) * math.Pi / 180

	f := &frame.SensorFrame{
		Height: h,
		Width:  w,
		Camera: frame.CameraParameters{
			Fx: 0.83 * float64(w), Fy: 0.83 * float64(w),
			Cx: float64(w-1) / 2, Cy: float64(h-1) / 2,
			K1: -0.12, K2: 0.03,
			FocalToRayCross: 0,
			CameraToWorld:   frame.IdentityCameraToWorld,
		},
		DistanceMap:  make([]uint16, n),
		IntensityMap: make([]uint16, n),
		StateMap:     make([]uint8, n),
	}

	base := 1500 + 500*math.Sin(phase)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			d := base + 4*float64(col) + 2*float64(row)
			f.DistanceMap[i] = uint16(d)
			f.IntensityMap[i] = uint16((col*37 + row*11 + int(seq)) % 4096)
		}
	}
	for _, i := range []int{0, w - 1, n - w, n - 1} {
		f.DistanceMap[i] = 0
		f.StateMap[i] = 1
	}

	yaw := phase / 2
	f.IMU = frame.IMUData{
		AngularVelocity: frame.Vector3{Z: math.Cos(phase) * 0.05},
		Acceleration:    frame.Vector3{Z: 9.81},
		Orientation:     frame.Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)},
	}

	near := base < 1500
	f.DeviceState = 1
	f.DeviceStatus = frame.DeviceStatusData{
		GeneralStatus:        frame.GeneralStatus{RunModeActive: true, ContaminationWarning: seq%100 == 0},
		ActiveMonitoringCase: frame.ActiveMonitoringCase{Case1: 1},
		ContaminationLevel:   uint8(seq % 8),
	}
	f.LocalIO = frame.LocalIOData{
		Configured:   frame.PinSet{Pin5: true, Pin6: true},
		Direction:    frame.PinSet{Pin6: true},
		OutputValue:  frame.PinSet{Pin6: near},
		OSSDState:    frame.OSSDState{OSSD1A: !near, OSSD1B: !near},
		OSSDDynCount: uint8(seq),
	}

	for id := uint8(1); id <= 4; id++ {
		col := int(id) * w / 5
		dist := f.DistanceMap[h/2*w+col]
		f.ROIs = append(f.ROIs, frame.ROI{
			ID:            id,
			DistanceValue: dist,
			Result: frame.ROIResult{
				TaskResult:    dist < 1500,
				ResultValid:   true,
				DistanceValid: true,
			},
		})
	}
	f.Fields = []frame.FieldInformation{
		{FieldID: 1, FieldSetID: 1, Active: true, Result: boolByte(near)},
		{FieldID: 2, FieldSetID: 1, Active: true, Result: boolByte(base < 1200)},
		{FieldID: 3, FieldSetID: 2, Active: false},
	}
	return f
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Sink receives each generated frame.
type Sink func(meta records.Header, f *frame.SensorFrame)

// Run generates one frame per tick until ctx is cancelled.
func (g *Generator) Run(ctx context.Context, clock timeutil.Clock, sink Sink) error {
	ticker := clock.NewTicker(g.Interval())
	defer ticker.Stop()

	logf("generating %dx%d frames at %.1f Hz", g.cfg.Width, g.cfg.Height, g.cfg.FrameRate)
	for {
		select {
		case <-ctx.Done():
			logf("stopped after %d frames", g.seq.Load())
			return ctx.Err()
		case now := <-ticker.C():
			meta, f := g.Next(now)
			sink(meta, f)
		}
	}
}
