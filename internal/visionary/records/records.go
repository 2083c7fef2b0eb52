// Package records defines the per-channel output records and their protobuf
// wire encoding.
//
// Records are values: once a transcoder has built one it is handed to the
// transport and never mutated again. Subscribers that need to modify a
// record's byte payload must copy it first.
package records

import "time"

// Header is the frame metadata stamped on every record produced from one
// frame.
type Header struct {
	Stamp   time.Time
	FrameID string
	Seq     uint64
}

// Record is implemented by every output record type.
type Record interface {
	RecordHeader() Header
	appendWire(b []byte) []byte
}

// CameraInfo is the calibration record.
type CameraInfo struct {
	Header          Header
	Height          uint32
	Width           uint32
	DistortionModel string
	D               []float64   // k1, k2, p1, p2, k3
	K               [9]float64  // row-major 3x3 intrinsics
	R               [9]float64  // rectification, unpopulated
	P               [12]float64 // projection, unpopulated
}

// PointField datatypes.
const (
	Int8    uint8 = 1
	Uint8   uint8 = 2
	Int16   uint8 = 3
	Uint16  uint8 = 4
	Int32   uint8 = 5
	Uint32  uint8 = 6
	Float32 uint8 = 7
	Float64 uint8 = 8
)

// PointField describes one field inside a packed point.
type PointField struct {
	Name     string
	Offset   uint32
	Datatype uint8
	Count    uint32
}

// PointCloud is a packed, strided point buffer.
type PointCloud struct {
	Header      Header
	Height      uint32
	Width       uint32
	Fields      []PointField
	IsBigEndian bool
	PointStep   uint32
	RowStep     uint32
	Data        []byte
	IsDense     bool
}

// Image encodings.
const (
	Encoding16UC1 = "16UC1"
	Encoding8UC1  = "8UC1"
)

// Image is a single-channel raster.
type Image struct {
	Header      Header
	Height      uint32
	Width       uint32
	Encoding    string
	IsBigEndian bool
	Step        uint32
	Data        []byte
}

// Vector3 is a plain 3-component vector.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation in X, Y, Z, W order.
type Quaternion struct {
	X, Y, Z, W float64
}

// IMU is the inertial record.
type IMU struct {
	Header             Header
	Orientation        Quaternion
	AngularVelocity    Vector3
	LinearAcceleration Vector3
}

// GeneralStatus mirrors the device general status bits.
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

// ActiveMonitoringCase holds the active case number of each monitoring case.
type ActiveMonitoringCase struct {
	MonitoringCase1 uint8
	MonitoringCase2 uint8
	MonitoringCase3 uint8
	MonitoringCase4 uint8
}

// DeviceStatus is the device status record.
type DeviceStatus struct {
	Header               Header
	Status               uint8
	GeneralStatus        GeneralStatus
	COPNonSafetyRelated  uint32
	COPSafetyRelated     uint32
	COPResetRequired     uint32
	ActiveMonitoringCase ActiveMonitoringCase
	ContaminationLevel   uint8
}

// Pins holds one value per universal I/O pin.
type Pins struct {
	Pin5, Pin6, Pin7, Pin8 bool
}

// OSSDs holds the output signal switching device states.
type OSSDs struct {
	OSSD1A, OSSD1B, OSSD2A, OSSD2B bool
}

// CameraIO is the local I/O record.
type CameraIO struct {
	Header            Header
	Configured        Pins
	Direction         Pins
	InputValues       Pins
	OutputValues      Pins
	OSSDsState        OSSDs
	OSSDsDynCount     uint8
	OSSDsCRC          uint8
	OSSDsIOStatus     uint8
	DynamicSpeedA     uint16
	DynamicSpeedB     uint16
	DynamicValidFlags uint16
}

// ROIResultData holds the evaluation result of a region of interest.
type ROIResultData struct {
	TaskResult    bool
	ResultSafe    bool
	ResultValid   bool
	DistanceValid bool
	DistanceSafe  bool
}

// ROISafetyData holds the safety flags of a region of interest.
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

// ROI is one region-of-interest entry.
type ROI struct {
	ID            uint8
	DistanceValue uint16
	ResultData    ROIResultData
	SafetyData    ROISafetyData
}

// ROIArray is the region-of-interest record. Entry order matches the frame.
type ROIArray struct {
	Header Header
	ROIs   []ROI
}

// FieldInformation is one field evaluation entry.
type FieldInformation struct {
	FieldID     uint8
	FieldSetID  uint16
	FieldActive bool
	FieldResult uint8
	EvalMethod  uint8
}

// FieldInformationArray is the field-evaluation record. Entry order matches
// the frame.
type FieldInformationArray struct {
	Header Header
	Fields []FieldInformation
}

func (r *CameraInfo) RecordHeader() Header            { return r.Header }
func (r *PointCloud) RecordHeader() Header            { return r.Header }
func (r *Image) RecordHeader() Header                 { return r.Header }
func (r *IMU) RecordHeader() Header                   { return r.Header }
func (r *DeviceStatus) RecordHeader() Header          { return r.Header }
func (r *CameraIO) RecordHeader() Header              { return r.Header }
func (r *ROIArray) RecordHeader() Header              { return r.Header }
func (r *FieldInformationArray) RecordHeader() Header { return r.Header }
