// Package frame defines the decoded sensor frame handed to the transcoder.
//
// A SensorFrame is produced by the frame decoder and is read-only from the
// point of view of everything downstream. Maps are row-major with
// Height*Width samples.
package frame

import "fmt"

// CameraParameters holds the intrinsic calibration of the sensor plus the
// extrinsics needed to place generated points in the world frame.
type CameraParameters struct {
	Fx, Fy float64 // focal lengths (pixels)
	Cx, Cy float64 // principal point (pixels)

	// Distortion coefficients (plumb bob order is K1, K2, P1, P2, K3).
	K1, K2, P1, P2, K3 float64

	// FocalToRayCross is the offset (mm) between the focal point and the
	// ray crossing point along the optical axis.
	FocalToRayCross float64

	// CameraToWorld is a 4x4 row-major homogeneous transform.
	CameraToWorld [16]float64
}

// Vector3 is a plain 3-component vector.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation in X, Y, Z, W order.
type Quaternion struct {
	X, Y, Z, W float64
}

// IMUData is one inertial sample.
type IMUData struct {
	AngularVelocity Vector3    // rad/s
	Acceleration    Vector3    // m/s^2
	Orientation     Quaternion // unit quaternion
}

// GeneralStatus holds the device's general status bits.
type GeneralStatus struct {
	RunModeActive        bool
	DeviceError          bool
	ApplicationError     bool
	ContaminationWarning bool
	ContaminationError   bool
	DeadZoneDetection    bool
	TemperatureWarning   bool
	WaitForInput         bool
	WaitForCluster       bool
}

// ActiveMonitoringCase holds the case number currently active per monitoring case.
type ActiveMonitoringCase struct {
	Case1 uint8
	Case2 uint8
	Case3 uint8
	Case4 uint8
}

// DeviceStatusData is the detailed device status record.
type DeviceStatusData struct {
	GeneralStatus        GeneralStatus
	COPSafetyRelated     uint32
	COPNonSafetyRelated  uint32
	COPResetRequired     uint32
	ActiveMonitoringCase ActiveMonitoringCase
	ContaminationLevel   uint8
}

// PinSet holds one boolean per universal I/O pin.
type PinSet struct {
	Pin5, Pin6, Pin7, Pin8 bool
}

// OSSDState holds the output signal switching device states.
type OSSDState struct {
	OSSD1A, OSSD1B, OSSD2A, OSSD2B bool
}

// LocalIOData is the local I/O snapshot.
type LocalIOData struct {
	Configured  PinSet
	Direction   PinSet
	InputValue  PinSet
	OutputValue PinSet

	OSSDState     OSSDState
	OSSDDynCount  uint8
	OSSDCRC       uint8
	OSSDIOStatus  uint8
	DynamicSpeedA uint16
	DynamicSpeedB uint16

	DynamicValidFlags uint16
}

// ROIResult holds the evaluation result bits of a region of interest.
type ROIResult struct {
	TaskResult    bool
	ResultSafe    bool
	ResultValid   bool
	DistanceValid bool
	DistanceSafe  bool
}

// ROISafetyData holds the safety-related bits of a region of interest.
type ROISafetyData struct {
	InvalidDueToInvalidPixels              bool
	InvalidDueToVariance                   bool
	InvalidDueToOverexposure               bool
	InvalidDueToUnderexposure              bool
	InvalidDueToTemporalVariance           bool
	InvalidDueToOutsideOfMeasurementRange  bool
	InvalidDueToRetroReflectorInterference bool
	ContaminationError                     bool
	QualityClass                           uint8
	SlotActive                             bool
}

// ROI is one region-of-interest evaluation.
type ROI struct {
	ID            uint8
	DistanceValue uint16
	Result        ROIResult
	Safety        ROISafetyData
}

// FieldInformation is one field evaluation.
type FieldInformation struct {
	FieldID    uint8
	FieldSetID uint16
	Active     bool
	Result     uint8
	EvalMethod uint8
}

// SensorFrame is one decoded frame.
type SensorFrame struct {
	Height int
	Width  int

	Camera CameraParameters

	DistanceMap  []uint16
	IntensityMap []uint16
	StateMap     []uint8

	IMU IMUData

	// DeviceState is the overall device state byte.
	DeviceState  uint8
	DeviceStatus DeviceStatusData

	LocalIO LocalIOData

	ROIs   []ROI
	Fields []FieldInformation
}

// PixelCount returns Height*Width, or 0 for a degenerate frame.
func (f *SensorFrame) PixelCount() int {
	if f == nil || f.Height <= 0 || f.Width <= 0 {
		return 0
	}
	return f.Height * f.Width
}

// Validate checks the frame dimensions against its maps.
func (f *SensorFrame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if f.Height <= 0 || f.Width <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	n := f.Height * f.Width
	if len(f.DistanceMap) != n {
		return fmt.Errorf("distance map has %d samples, want %d", len(f.DistanceMap), n)
	}
	if len(f.IntensityMap) != n {
		return fmt.Errorf("intensity map has %d samples, want %d", len(f.IntensityMap), n)
	}
	if len(f.StateMap) != n {
		return fmt.Errorf("state map has %d samples, want %d", len(f.StateMap), n)
	}
	return nil
}

// Point3D is a Cartesian point in metres.
type Point3D struct {
	X, Y, Z float32
}

// PointSource generates the 3-D points for a frame and expresses them in the
// target reference frame.
type PointSource interface {
	// GeneratePoints returns one camera-frame point per pixel.
	GeneratePoints(f *SensorFrame) ([]Point3D, error)

	// TransformPoints returns pts expressed in the target reference frame.
	TransformPoints(f *SensorFrame, pts []Point3D) ([]Point3D, error)
}

// IdentityCameraToWorld is the 4x4 identity transform.
var IdentityCameraToWorld = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}
