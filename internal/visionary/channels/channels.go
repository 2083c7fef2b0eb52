// Package channels enumerates the output streams derived from a single
// sensor frame and the topic names they are published under.
package channels

import "fmt"

// Channel identifies one independent output stream.
type Channel int

const (
	CameraInfo Channel = iota
	Points
	Depth
	Intensity
	State
	IMU
	DeviceStatus
	IO
	ROI
	Fields

	numChannels
)

// topics are the stream names consumers subscribe to.
var topics = [numChannels]string{
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

// All returns every channel in publish order.
func All() []Channel {
	all := make([]Channel, 0, numChannels)
	for c := Channel(0); c < numChannels; c++ {
		all = append(all, c)
	}
	return all
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c >= 0 && c < numChannels
}

// Topic returns the stream name for c, or "" for an unknown channel.
func (c Channel) Topic() string {
	if !c.Valid() {
		return ""
	}
	return topics[c]
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return topics[c]
}

// FromTopic resolves a topic name back to its channel.
func FromTopic(topic string) (Channel, bool) {
	for c, t := range topics {
		if t == topic {
			return Channel(c), true
		}
	}
	return 0, false
}

// Topics returns the topic names of every channel in publish order.
func Topics() []string {
	out := make([]string, 0, numChannels)
	for _, t := range topics {
		out = append(out, t)
	}
	return out
}
