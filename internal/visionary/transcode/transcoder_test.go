package transcode

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/testutil"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/demand"
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

func init() {
	monitoring.SetLogger(nil)
}

type published struct {
	channel channels.Channel
	record  records.Record
}

type recordingPublisher struct {
	calls []published
}

func (p *recordingPublisher) Publish(c channels.Channel, rec records.Record) {
	p.calls = append(p.calls, published{channel: c, record: rec})
}

func (p *recordingPublisher) byChannel() map[channels.Channel]records.Record {
	out := make(map[channels.Channel]records.Record, len(p.calls))
	for _, c := range p.calls {
		out[c.channel] = c.record
	}
	return out
}

func only(cs ...channels.Channel) demand.Gate {
	set := make(map[channels.Channel]bool, len(cs))
	for _, c := range cs {
		set[c] = true
	}
	return demand.GateFunc(func(c channels.Channel) bool { return set[c] })
}

func testMeta() records.Header {
	return records.Header{
		Stamp:   time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		FrameID: "camera",
		Seq:     7,
	}
}

func TestNoConsumersMeansNoWork(t *testing.T) {
	pub := &recordingPublisher{}
	src := &testutil.GridSource{}
	tc := New(demand.GateFunc(func(channels.Channel) bool { return false }), pub, src)

	rep := tc.TranscodeAndPublish(testMeta(), testutil.NewFrame(4, 5))

	assert.Empty(t, pub.calls)
	assert.Equal(t, 0, src.Calls, "point source must not run without consumers")
	assert.Empty(t, rep.Produced)
	assert.Len(t, rep.Skipped, len(channels.All()))
	assert.NoError(t, rep.Err())

	stats := tc.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint64(1), stats.Channels["points"].Skipped)
	assert.Equal(t, uint64(0), stats.Channels["points"].Produced)
}

func TestOnlyDemandedChannelsPublish(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(only(channels.IMU, channels.ROI), pub, &testutil.GridSource{})

	rep := tc.TranscodeAndPublish(testMeta(), testutil.NewFrame(2, 2))

	require.Len(t, pub.calls, 2)
	assert.Equal(t, []channels.Channel{channels.IMU, channels.ROI}, rep.Produced)
	got := pub.byChannel()
	assert.IsType(t, &records.IMU{}, got[channels.IMU])
	assert.IsType(t, &records.ROIArray{}, got[channels.ROI])
}

func TestAllChannelsShareMetadata(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(demand.Always, pub, &testutil.GridSource{})
	meta := testMeta()

	rep := tc.TranscodeAndPublish(meta, testutil.NewFrame(3, 4))

	require.NoError(t, rep.Err())
	require.Len(t, pub.calls, len(channels.All()))
	for _, c := range pub.calls {
		assert.Equal(t, meta, c.record.RecordHeader(), "channel %s", c.channel)
	}
}

func TestMismatchOnlyDropsPointCloud(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(demand.Always, pub, &testutil.GridSource{Drop: 1})

	rep := tc.TranscodeAndPublish(testMeta(), testutil.NewFrame(3, 4))

	got := pub.byChannel()
	_, ok := got[channels.Points]
	assert.False(t, ok, "point cloud must not publish on mismatch")
	assert.Len(t, pub.calls, len(channels.All())-1)

	require.Contains(t, rep.Failed, channels.Points)
	assert.ErrorIs(t, rep.Failed[channels.Points], ErrPrereqMismatch)
	assert.ErrorIs(t, rep.Err(), ErrPrereqMismatch)
	assert.Equal(t, uint64(1), tc.Stats().Channels["points"].Failed)
}

func TestUpstreamFailureOnlyDropsPointCloud(t *testing.T) {
	tests := []struct {
		name string
		src  frame.PointSource
	}{
		{"generate error", &testutil.GridSource{GenerateErr: errors.New("no calibration")}},
		{"transform error", &testutil.GridSource{TransformErr: errors.New("degenerate matrix")}},
		{"panic", panickySource{}},
		{"short transform", shrinkingSource{}},
		{"nil source", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			tc := New(demand.Always, pub, tt.src)

			rep := tc.TranscodeAndPublish(testMeta(), testutil.NewFrame(2, 3))

			assert.Len(t, pub.calls, len(channels.All())-1)
			require.Contains(t, rep.Failed, channels.Points)
			assert.ErrorIs(t, rep.Failed[channels.Points], ErrUpstream)
		})
	}
}

type panickySource struct{}

func (panickySource) GeneratePoints(*frame.SensorFrame) ([]frame.Point3D, error) {
	panic("decoder exploded")
}

func (panickySource) TransformPoints(_ *frame.SensorFrame, pts []frame.Point3D) ([]frame.Point3D, error) {
	return pts, nil
}

type shrinkingSource struct{}

func (shrinkingSource) GeneratePoints(f *frame.SensorFrame) ([]frame.Point3D, error) {
	return make([]frame.Point3D, f.PixelCount()), nil
}

func (shrinkingSource) TransformPoints(_ *frame.SensorFrame, pts []frame.Point3D) ([]frame.Point3D, error) {
	return pts[:len(pts)-1], nil
}

func TestNilFrameFailsEveryDemandedChannel(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(only(channels.IMU, channels.CameraInfo), pub, &testutil.GridSource{})

	rep := tc.TranscodeAndPublish(testMeta(), nil)

	assert.Empty(t, pub.calls)
	assert.Len(t, rep.Failed, 2)
	assert.ErrorIs(t, rep.Failed[channels.IMU], ErrPrereqMismatch)
}

func TestNegativeDimensionsFailRasterChannels(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(demand.Always, pub, &testutil.GridSource{})

	var rep Report
	require.NotPanics(t, func() {
		rep = tc.TranscodeAndPublish(testMeta(), &frame.SensorFrame{Height: -2, Width: -3})
	})

	raster := []channels.Channel{channels.CameraInfo, channels.Points, channels.Depth, channels.Intensity, channels.State}
	require.Len(t, rep.Failed, len(raster))
	got := pub.byChannel()
	for _, c := range raster {
		assert.ErrorIs(t, rep.Failed[c], ErrPrereqMismatch, c.String())
		assert.NotContains(t, got, c)
	}
	assert.Contains(t, got, channels.IMU)
	assert.Len(t, pub.calls, len(channels.All())-len(raster))
}

func TestMalformedImageMapsFailIndependently(t *testing.T) {
	pub := &recordingPublisher{}
	tc := New(demand.Always, pub, &testutil.GridSource{})
	f := testutil.NewFrame(2, 2)
	f.StateMap = f.StateMap[:3]
	f.DistanceMap = append(f.DistanceMap, 1)

	rep := tc.TranscodeAndPublish(testMeta(), f)

	assert.ErrorIs(t, rep.Failed[channels.State], ErrPrereqMismatch)
	assert.ErrorIs(t, rep.Failed[channels.Depth], ErrPrereqMismatch)
	assert.NotContains(t, rep.Failed, channels.Intensity)
	assert.NotContains(t, rep.Failed, channels.Points)
	assert.Len(t, pub.calls, len(channels.All())-2)
}

func TestNilGateAndPublisher(t *testing.T) {
	rep := New(nil, nil, nil).TranscodeAndPublish(testMeta(), testutil.NewFrame(1, 1))
	assert.Len(t, rep.Skipped, len(channels.All()))

	rep = New(demand.Always, nil, &testutil.GridSource{}).TranscodeAndPublish(testMeta(), testutil.NewFrame(1, 1))
	assert.Len(t, rep.Produced, len(channels.All()))
}

func TestIdempotentOutput(t *testing.T) {
	f := testutil.NewFrame(4, 6)
	run := func() map[channels.Channel][]byte {
		pub := &recordingPublisher{}
		New(demand.Always, pub, &testutil.GridSource{}).TranscodeAndPublish(testMeta(), f)
		out := make(map[channels.Channel][]byte)
		for _, c := range pub.calls {
			b, err := records.Marshal(c.record)
			require.NoError(t, err)
			out[c.channel] = b
		}
		return out
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("records differ between identical runs (-first +second):\n%s", diff)
	}
}

func TestFrameNotMutated(t *testing.T) {
	f := testutil.NewFrame(3, 3)
	before := testutil.NewFrame(3, 3)

	New(demand.Always, &recordingPublisher{}, &testutil.GridSource{}).TranscodeAndPublish(testMeta(), f)

	if diff := cmp.Diff(before, f); diff != "" {
		t.Errorf("frame mutated (-before +after):\n%s", diff)
	}
}
