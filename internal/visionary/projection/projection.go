// Package projection is the default frame.PointSource. It back-projects
// each pixel of the distance map through the pinhole camera model and
// places the resulting points in the world frame.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/visionary.report/internal/visionary/frame"
)

// ErrNoCalibration is returned when the frame's focal lengths are unusable.
var ErrNoCalibration = errors.New("projection: missing camera calibration")

// Mount places the sensor on the vehicle or rig. Rotation is applied before
// Translation. Translation is in metres.
type Mount struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// IdentityMount leaves points unchanged.
var IdentityMount = Mount{Rotation: quat.Number{Real: 1}}

// Source generates points in metres from distance samples.
type Source struct {
	// distance unit in millimetres per map count
	scale float64
	mount *Mount
}

// Option configures a Source.
type Option func(*Source)

// WithDistanceScale sets the millimetres represented by one distance count.
// Non-positive values are ignored.
func WithDistanceScale(mmPerCount float64) Option {
	return func(s *Source) {
		if mmPerCount > 0 {
			s.scale = mmPerCount
		}
	}
}

// WithMount applies m after the camera-to-world transform.
func WithMount(m Mount) Option {
	return func(s *Source) {
		if m.Rotation == (quat.Number{}) {
			m.Rotation = IdentityMount.Rotation
		}
		m.Rotation = quat.Scale(1/quat.Abs(m.Rotation), m.Rotation)
		s.mount = &m
	}
}

// New returns a Source with a 1 mm distance unit and no mount offset.
func New(opts ...Option) *Source {
	s := &Source{scale: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeneratePoints returns one point per pixel, in row-major order, in the
// camera frame. Zero-distance pixels are kept and land on (0, 0, -f2rc).
func (s *Source) GeneratePoints(f *frame.SensorFrame) ([]frame.Point3D, error) {
	if f == nil {
		return nil, errors.New("projection: nil frame")
	}
	cam := f.Camera
	if cam.Fx == 0 || cam.Fy == 0 {
		return nil, ErrNoCalibration
	}
	n := f.PixelCount()
	if len(f.DistanceMap) != n {
		return nil, fmt.Errorf("projection: distance map has %d samples for a %dx%d frame", len(f.DistanceMap), f.Width, f.Height)
	}

	pts := make([]frame.Point3D, n)
	f2rc := cam.FocalToRayCross
	for row := 0; row < f.Height; row++ {
		yp := (cam.Cy - float64(row)) / cam.Fy
		for col := 0; col < f.Width; col++ {
			xp := (cam.Cx - float64(col)) / cam.Fx

			r2 := xp*xp + yp*yp
			k := 1 + cam.K1*r2 + cam.K2*r2*r2
			xd := xp * k
			yd := yp * k

			i := row*f.Width + col
			d := float64(f.DistanceMap[i]) * s.scale
			s0 := math.Sqrt(xd*xd + yd*yd + 1)

			pts[i] = frame.Point3D{
				X: float32(xd * d / s0 / 1000),
				Y: float32(yd * d / s0 / 1000),
				Z: float32((d/s0 - f2rc) / 1000),
			}
		}
	}
	return pts, nil
}

// TransformPoints applies the frame's camera-to-world matrix, whose
// translation column is in millimetres, and then the mount. The input slice
// is not modified.
func (s *Source) TransformPoints(f *frame.SensorFrame, pts []frame.Point3D) ([]frame.Point3D, error) {
	if f == nil {
		return nil, errors.New("projection: nil frame")
	}
	m := f.Camera.CameraToWorld
	if m[15] == 0 {
		return nil, errors.New("projection: degenerate camera-to-world matrix")
	}

	out := make([]frame.Point3D, len(pts))
	for i, p := range pts {
		v := r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
		v = applyMatrix(m, v)
		if s.mount != nil {
			v = r3.Add(r3.Rotation(s.mount.Rotation).Rotate(v), s.mount.Translation)
		}
		out[i] = frame.Point3D{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
	}
	return out, nil
}

// applyMatrix transforms a point in metres by a row-major 4x4 matrix with a
// millimetre translation.
func applyMatrix(m [16]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3]/1000,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7]/1000,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11]/1000,
	}
}

var _ frame.PointSource = (*Source)(nil)
