package transcode

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

// DepthImage wraps the distance map as a 16UC1 raster.
func DepthImage(h records.Header, f *frame.SensorFrame) (*records.Image, error) {
	return image16(h, f, f.DistanceMap, "distance")
}

// IntensityImage wraps the intensity map as a 16UC1 raster.
func IntensityImage(h records.Header, f *frame.SensorFrame) (*records.Image, error) {
	return image16(h, f, f.IntensityMap, "intensity")
}

// StateImage wraps the state map as an 8UC1 raster.
func StateImage(h records.Header, f *frame.SensorFrame) (*records.Image, error) {
	if err := checkDimensions(f); err != nil {
		return nil, err
	}
	n := f.PixelCount()
	if len(f.StateMap) != n {
		return nil, fmt.Errorf("%w: state map has %d samples for a %dx%d frame", ErrPrereqMismatch, len(f.StateMap), f.Width, f.Height)
	}
	data := make([]byte, n)
	copy(data, f.StateMap)
	return &records.Image{
		Header:   h,
		Height:   uint32(f.Height),
		Width:    uint32(f.Width),
		Encoding: records.Encoding8UC1,
		Step:     uint32(f.Width),
		Data:     data,
	}, nil
}

func image16(h records.Header, f *frame.SensorFrame, src []uint16, name string) (*records.Image, error) {
	if err := checkDimensions(f); err != nil {
		return nil, err
	}
	n := f.PixelCount()
	if len(src) != n {
		return nil, fmt.Errorf("%w: %s map has %d samples for a %dx%d frame", ErrPrereqMismatch, name, len(src), f.Width, f.Height)
	}
	data := make([]byte, 2*n)
	for i, v := range src {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return &records.Image{
		Header:      h,
		Height:      uint32(f.Height),
		Width:       uint32(f.Width),
		Encoding:    records.Encoding16UC1,
		IsBigEndian: false,
		Step:        uint32(2 * f.Width),
		Data:        data,
	}, nil
}
