// Package testutil provides shared test utilities and fixtures.
//
// Fixtures are deterministic so tests can compare published bytes across runs.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/visionary.report/internal/visionary/frame"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewFrame returns a fully populated h x w frame. Map sample i holds
// distance 1000+i, intensity 10*i and state i%256.
func NewFrame(h, w int) *frame.SensorFrame {
	n := h * w
	f := &frame.SensorFrame{
		Height: h,
		Width:  w,
		Camera: frame.CameraParameters{
			Fx: 146.5, Fy: 146.5,
			Cx: float64(w) / 2, Cy: float64(h) / 2,
			K1: -0.11, K2: 0.02, P1: 0.001, P2: -0.002, K3: 0.0005,
			FocalToRayCross: 0,
			CameraToWorld:   frame.IdentityCameraToWorld,
		},
		DistanceMap:  make([]uint16, n),
		IntensityMap: make([]uint16, n),
		StateMap:     make([]uint8, n),
		IMU: frame.IMUData{
			AngularVelocity: frame.Vector3{X: 0.01, Y: -0.02, Z: 0.03},
			Acceleration:    frame.Vector3{X: 0.1, Y: 0.2, Z: 9.81},
			Orientation:     frame.Quaternion{X: 0, Y: 0, Z: 0.7071, W: 0.7071},
		},
		DeviceState: 2,
		DeviceStatus: frame.DeviceStatusData{
			GeneralStatus: frame.GeneralStatus{
				RunModeActive:        true,
				ContaminationWarning: true,
				WaitForCluster:       true,
			},
			COPSafetyRelated:     0x11,
			COPNonSafetyRelated:  0x22,
			COPResetRequired:     0x33,
			ActiveMonitoringCase: frame.ActiveMonitoringCase{Case1: 1, Case2: 2, Case3: 3, Case4: 4},
			ContaminationLevel:   7,
		},
		LocalIO: frame.LocalIOData{
			Configured:        frame.PinSet{Pin5: true, Pin6: true},
			Direction:         frame.PinSet{Pin6: true},
			InputValue:        frame.PinSet{Pin5: true},
			OutputValue:       frame.PinSet{Pin8: true},
			OSSDState:         frame.OSSDState{OSSD1A: true, OSSD2B: true},
			OSSDDynCount:      9,
			OSSDCRC:           0xab,
			OSSDIOStatus:      1,
			DynamicSpeedA:     1200,
			DynamicSpeedB:     1300,
			DynamicValidFlags: 0x3,
		},
		ROIs: []frame.ROI{
			{ID: 3, DistanceValue: 1500, Result: frame.ROIResult{TaskResult: true, ResultValid: true}},
			{ID: 1, DistanceValue: 900, Safety: frame.ROISafetyData{InvalidDueToVariance: true, QualityClass: 2}},
			{ID: 2, DistanceValue: 0, Safety: frame.ROISafetyData{SlotActive: true}},
		},
		Fields: []frame.FieldInformation{
			{FieldID: 5, FieldSetID: 1, Active: true, Result: 1, EvalMethod: 0},
			{FieldID: 4, FieldSetID: 1, Active: false, Result: 0, EvalMethod: 1},
		},
	}
	for i := 0; i < n; i++ {
		f.DistanceMap[i] = uint16(1000 + i)
		f.IntensityMap[i] = uint16(10 * i)
		f.StateMap[i] = uint8(i % 256)
	}
	return f
}

// GridSource is a deterministic frame.PointSource: pixel i maps to
// (col, row, distance/1000) and TransformPoints is the identity.
type GridSource struct {
	// Drop removes this many points from the generated cloud.
	Drop int
	// GenerateErr and TransformErr are returned when set.
	GenerateErr  error
	TransformErr error

	Calls int
}

// GeneratePoints implements frame.PointSource.
func (g *GridSource) GeneratePoints(f *frame.SensorFrame) ([]frame.Point3D, error) {
	g.Calls++
	if g.GenerateErr != nil {
		return nil, g.GenerateErr
	}
	n := f.PixelCount()
	pts := make([]frame.Point3D, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, frame.Point3D{
			X: float32(i % f.Width),
			Y: float32(i / f.Width),
			Z: float32(f.DistanceMap[i]) / 1000,
		})
	}
	if g.Drop > 0 && g.Drop <= len(pts) {
		pts = pts[:len(pts)-g.Drop]
	}
	return pts, nil
}

// TransformPoints implements frame.PointSource.
func (g *GridSource) TransformPoints(_ *frame.SensorFrame, pts []frame.Point3D) ([]frame.Point3D, error) {
	if g.TransformErr != nil {
		return nil, g.TransformErr
	}
	return pts, nil
}
