package transcode

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

// Packed point layout: [x:f32][y:f32][z:f32][intensity:u16], no padding.
const (
	OffsetX         = 0
	OffsetY         = 4
	OffsetZ         = 8
	OffsetIntensity = 12
	PointStep       = 14
)

var pointFields = []records.PointField{
	{Name: "x", Offset: OffsetX, Datatype: records.Float32, Count: 1},
	{Name: "y", Offset: OffsetY, Datatype: records.Float32, Count: 1},
	{Name: "z", Offset: OffsetZ, Datatype: records.Float32, Count: 1},
	{Name: "intensity", Offset: OffsetIntensity, Datatype: records.Uint16, Count: 1},
}

// PointFields returns the field descriptors of the packed point layout.
func PointFields() []records.PointField {
	return slices.Clone(pointFields)
}

// PointCloud generates, transforms and packs the frame's points.
//
// The cloud is organised (Height x Width) and never dense: invalid range
// readings stay in the buffer as sentinel coordinates.
func PointCloud(h records.Header, f *frame.SensorFrame, src frame.PointSource) (*records.PointCloud, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no point source configured", ErrUpstream)
	}
	if err := checkDimensions(f); err != nil {
		return nil, err
	}

	pts, err := generatePoints(src, f)
	if err != nil {
		return nil, err
	}
	if len(pts) != len(f.IntensityMap) {
		return nil, fmt.Errorf("%w: %d points but %d intensity samples", ErrPrereqMismatch, len(pts), len(f.IntensityMap))
	}
	if len(pts) != f.PixelCount() {
		return nil, fmt.Errorf("%w: %d points for a %dx%d frame", ErrPrereqMismatch, len(pts), f.Width, f.Height)
	}

	rowStep := uint32(PointStep * f.Width)
	data := make([]byte, f.Height*int(rowStep))
	PackPoints(data, pts, f.IntensityMap)

	return &records.PointCloud{
		Header:      h,
		Height:      uint32(f.Height),
		Width:       uint32(f.Width),
		Fields:      PointFields(),
		IsBigEndian: false,
		PointStep:   PointStep,
		RowStep:     rowStep,
		Data:        data,
		IsDense:     false,
	}, nil
}

// generatePoints runs the point source and turns panics and count changes
// into ErrUpstream.
func generatePoints(src frame.PointSource, f *frame.SensorFrame) (pts []frame.Point3D, err error) {
	defer func() {
		if r := recover(); r != nil {
			pts = nil
			err = fmt.Errorf("%w: panic: %v", ErrUpstream, r)
		}
	}()

	generated, err := src.GeneratePoints(f)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", ErrUpstream, err)
	}
	transformed, err := src.TransformPoints(f, generated)
	if err != nil {
		return nil, fmt.Errorf("%w: transform: %w", ErrUpstream, err)
	}
	if len(transformed) != len(generated) {
		return nil, fmt.Errorf("%w: transform returned %d points for %d inputs", ErrUpstream, len(transformed), len(generated))
	}
	return transformed, nil
}

// PackPoints writes point i at dst[i*PointStep:]. Coordinates are stored as
// little-endian IEEE-754 float32 and intensities as little-endian uint16,
// unconverted. dst must hold at least len(pts)*PointStep bytes and
// intensity at least len(pts) samples.
func PackPoints(dst []byte, pts []frame.Point3D, intensity []uint16) {
	if len(pts) == 0 {
		return
	}
	_ = dst[len(pts)*PointStep-1]
	_ = intensity[len(pts)-1]
	for i, p := range pts {
		b := dst[i*PointStep : (i+1)*PointStep]
		binary.LittleEndian.PutUint32(b[OffsetX:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(b[OffsetY:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(b[OffsetZ:], math.Float32bits(p.Z))
		binary.LittleEndian.PutUint16(b[OffsetIntensity:], intensity[i])
	}
}
