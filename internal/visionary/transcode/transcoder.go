// Package transcode turns one decoded sensor frame into per-channel output
// records, doing the work for a channel only when it has consumers.
//
// Channels are independent. A failure on one channel is logged and counted,
// and that channel produces nothing for the frame; every other channel is
// still evaluated and published.
package transcode

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/demand"
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

var logf = monitoring.Tagged("Transcoder")

// Publisher delivers a finished record on a channel's stream. Publish is
// fire-and-forget: it must not block on slow consumers.
type Publisher interface {
	Publish(c channels.Channel, rec records.Record)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(c channels.Channel, rec records.Record)

// Publish calls f(c, rec).
func (f PublisherFunc) Publish(c channels.Channel, rec records.Record) { f(c, rec) }

type channelCounters struct {
	produced atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
}

// Transcoder is the per-frame entry point.
type Transcoder struct {
	gate   demand.Gate
	pub    Publisher
	points frame.PointSource

	frames   atomic.Uint64
	counters []channelCounters
}

// New creates a Transcoder. points may be nil, in which case the point-cloud
// channel fails whenever it has demand.
func New(gate demand.Gate, pub Publisher, points frame.PointSource) *Transcoder {
	return &Transcoder{
		gate:     gate,
		pub:      pub,
		points:   points,
		counters: make([]channelCounters, len(channels.All())),
	}
}

// Report describes what one TranscodeAndPublish call did.
type Report struct {
	Produced []channels.Channel
	Skipped  []channels.Channel
	Failed   map[channels.Channel]error
}

// Err combines the channel failures in channel order, or returns nil.
func (r Report) Err() error {
	var err error
	for _, c := range channels.All() {
		if cerr, ok := r.Failed[c]; ok {
			err = multierr.Append(err, fmt.Errorf("%s: %w", c, cerr))
		}
	}
	return err
}

// TranscodeAndPublish evaluates every channel for one frame. Channels
// without consumers are skipped before any work is done. Every record
// produced carries meta unchanged. The frame is not retained.
func (t *Transcoder) TranscodeAndPublish(meta records.Header, f *frame.SensorFrame) Report {
	t.frames.Add(1)
	rep := Report{}

	for _, c := range channels.All() {
		if t.gate == nil || !t.gate.HasConsumers(c) {
			rep.Skipped = append(rep.Skipped, c)
			t.counters[c].skipped.Add(1)
			continue
		}

		rec, err := t.transcode(c, meta, f)
		if err != nil {
			if rep.Failed == nil {
				rep.Failed = make(map[channels.Channel]error)
			}
			rep.Failed[c] = err
			t.counters[c].failed.Add(1)
			logf("%s seq=%d: %v, nothing published", c, meta.Seq, err)
			continue
		}

		if t.pub != nil {
			t.pub.Publish(c, rec)
		}
		rep.Produced = append(rep.Produced, c)
		t.counters[c].produced.Add(1)
	}
	return rep
}

func (t *Transcoder) transcode(c channels.Channel, h records.Header, f *frame.SensorFrame) (records.Record, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrPrereqMismatch)
	}
	switch c {
	case channels.CameraInfo:
		if err := checkDimensions(f); err != nil {
			return nil, err
		}
		return CameraInfo(h, f), nil
	case channels.Points:
		return PointCloud(h, f, t.points)
	case channels.Depth:
		return DepthImage(h, f)
	case channels.Intensity:
		return IntensityImage(h, f)
	case channels.State:
		return StateImage(h, f)
	case channels.IMU:
		return IMU(h, f), nil
	case channels.DeviceStatus:
		return DeviceStatus(h, f), nil
	case channels.IO:
		return CameraIO(h, f), nil
	case channels.ROI:
		return ROIs(h, f), nil
	case channels.Fields:
		return Fields(h, f), nil
	default:
		return nil, fmt.Errorf("unknown channel %d", int(c))
	}
}

// ChannelStats counts per-channel outcomes since start.
type ChannelStats struct {
	Produced uint64 `json:"produced"`
	Skipped  uint64 `json:"skipped"`
	Failed   uint64 `json:"failed"`
}

// Stats is a snapshot of transcoder counters.
type Stats struct {
	Frames   uint64                  `json:"frames"`
	Channels map[string]ChannelStats `json:"channels"`
}

// Stats returns a snapshot of the transcoder counters keyed by topic.
func (t *Transcoder) Stats() Stats {
	s := Stats{
		Frames:   t.frames.Load(),
		Channels: make(map[string]ChannelStats, len(t.counters)),
	}
	for _, c := range channels.All() {
		cc := &t.counters[c]
		s.Channels[c.Topic()] = ChannelStats{
			Produced: cc.produced.Load(),
			Skipped:  cc.skipped.Load(),
			Failed:   cc.failed.Load(),
		}
	}
	return s
}
