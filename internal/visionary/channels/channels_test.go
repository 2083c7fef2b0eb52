package channels

import "testing"

func TestTopicsRoundTrip(t *testing.T) {
	for _, c := range All() {
		topic := c.Topic()
		if topic == "" {
			t.Fatalf("channel %d has no topic", int(c))
		}
		got, ok := FromTopic(topic)
		if !ok {
			t.Errorf("FromTopic(%q) not found", topic)
		}
		if got != c {
			t.Errorf("FromTopic(%q) = %v, want %v", topic, got, c)
		}
	}
}

func TestAllCount(t *testing.T) {
	if got := len(All()); got != 10 {
		t.Errorf("expected 10 channels, got %d", got)
	}
	if got := len(Topics()); got != 10 {
		t.Errorf("expected 10 topics, got %d", got)
	}
}

func TestUnknownChannel(t *testing.T) {
	c := Channel(42)
	if c.Valid() {
		t.Error("expected channel 42 to be invalid")
	}
	if c.Topic() != "" {
		t.Errorf("expected empty topic, got %q", c.Topic())
	}
	if c.String() != "channel(42)" {
		t.Errorf("unexpected String(): %s", c.String())
	}
	if _, ok := FromTopic("nope"); ok {
		t.Error("expected unknown topic to fail lookup")
	}
}

func TestKnownTopicNames(t *testing.T) {
	want := map[Channel]string{
		CameraInfo:   "camera_info",
		Points:       "points",
		Depth:        "depth",
		Intensity:    "intensity",
		State:        "state",
		IMU:          "imu_data",
		DeviceStatus: "device_status",
		IO:           "camera_io",
		ROI:          "region_of_interest",
		Fields:       "fields",
	}
	for c, topic := range want {
		if c.Topic() != topic {
			t.Errorf("%d: expected %q, got %q", int(c), topic, c.Topic())
		}
	}
}
