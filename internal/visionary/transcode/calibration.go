package transcode

import (
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

// DistortionModelPlumbBob names the five-coefficient radial/tangential model.
const DistortionModelPlumbBob = "plumb_bob"

// CameraInfo builds the calibration record.
//
// K holds {fx, 0, cx, 0, fy, cy, 0, 0, 1}. R and P are left zero: the sensor
// reports no rectification or projection terms.
func CameraInfo(h records.Header, f *frame.SensorFrame) *records.CameraInfo {
	cam := f.Camera
	info := &records.CameraInfo{
		Header:          h,
		Height:          uint32(f.Height),
		Width:           uint32(f.Width),
		DistortionModel: DistortionModelPlumbBob,
		D:               []float64{cam.K1, cam.K2, cam.P1, cam.P2, cam.K3},
	}
	info.K[0] = cam.Fx
	info.K[2] = cam.Cx
	info.K[4] = cam.Fy
	info.K[5] = cam.Cy
	info.K[8] = 1
	return info
}
