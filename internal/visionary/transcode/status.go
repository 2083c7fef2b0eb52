package transcode

import (
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

// The remaining channels are straight field copies.

// IMU copies the inertial sample.
func IMU(h records.Header, f *frame.SensorFrame) *records.IMU {
	imu := f.IMU
	return &records.IMU{
		Header: h,
		Orientation: records.Quaternion{
			X: imu.Orientation.X,
			Y: imu.Orientation.Y,
			Z: imu.Orientation.Z,
			W: imu.Orientation.W,
		},
		AngularVelocity:    vector3(imu.AngularVelocity),
		LinearAcceleration: vector3(imu.Acceleration),
	}
}

func vector3(v frame.Vector3) records.Vector3 {
	return records.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// DeviceStatus copies the device state byte and detailed status.
func DeviceStatus(h records.Header, f *frame.SensorFrame) *records.DeviceStatus {
	d := f.DeviceStatus
	g := d.GeneralStatus
	m := d.ActiveMonitoringCase
	return &records.DeviceStatus{
		Header: h,
		Status: f.DeviceState,
		GeneralStatus: records.GeneralStatus{
			RunModeActive:        g.RunModeActive,
			DeviceError:          g.DeviceError,
			ApplicationError:     g.ApplicationError,
			ContaminationWarning: g.ContaminationWarning,
			ContaminationError:   g.ContaminationError,
			DeadZoneDetection:    g.DeadZoneDetection,
			TemperatureWarning:   g.TemperatureWarning,
			WaitForInput:         g.WaitForInput,
			WaitForCluster:       g.WaitForCluster,
		},
		COPNonSafetyRelated: d.COPNonSafetyRelated,
		COPSafetyRelated:    d.COPSafetyRelated,
		COPResetRequired:    d.COPResetRequired,
		ActiveMonitoringCase: records.ActiveMonitoringCase{
			MonitoringCase1: m.Case1,
			MonitoringCase2: m.Case2,
			MonitoringCase3: m.Case3,
			MonitoringCase4: m.Case4,
		},
		ContaminationLevel: d.ContaminationLevel,
	}
}

func pins(p frame.PinSet) records.Pins {
	return records.Pins{Pin5: p.Pin5, Pin6: p.Pin6, Pin7: p.Pin7, Pin8: p.Pin8}
}

// CameraIO copies the local I/O snapshot.
func CameraIO(h records.Header, f *frame.SensorFrame) *records.CameraIO {
	io := f.LocalIO
	return &records.CameraIO{
		Header:       h,
		Configured:   pins(io.Configured),
		Direction:    pins(io.Direction),
		InputValues:  pins(io.InputValue),
		OutputValues: pins(io.OutputValue),
		OSSDsState: records.OSSDs{
			OSSD1A: io.OSSDState.OSSD1A,
			OSSD1B: io.OSSDState.OSSD1B,
			OSSD2A: io.OSSDState.OSSD2A,
			OSSD2B: io.OSSDState.OSSD2B,
		},
		OSSDsDynCount:     io.OSSDDynCount,
		OSSDsCRC:          io.OSSDCRC,
		OSSDsIOStatus:     io.OSSDIOStatus,
		DynamicSpeedA:     io.DynamicSpeedA,
		DynamicSpeedB:     io.DynamicSpeedB,
		DynamicValidFlags: io.DynamicValidFlags,
	}
}

// ROIs copies the region-of-interest list, one entry per input entry, in
// input order.
func ROIs(h records.Header, f *frame.SensorFrame) *records.ROIArray {
	out := &records.ROIArray{
		Header: h,
		ROIs:   make([]records.ROI, 0, len(f.ROIs)),
	}
	for _, roi := range f.ROIs {
		s := roi.Safety
		out.ROIs = append(out.ROIs, records.ROI{
			ID:            roi.ID,
			DistanceValue: roi.DistanceValue,
			ResultData: records.ROIResultData{
				TaskResult:    roi.Result.TaskResult,
				ResultSafe:    roi.Result.ResultSafe,
				ResultValid:   roi.Result.ResultValid,
				DistanceValid: roi.Result.DistanceValid,
				DistanceSafe:  roi.Result.DistanceSafe,
			},
			SafetyData: records.ROISafetyData{
				InvalidDueToInvalidPixels:              s.InvalidDueToInvalidPixels,
				InvalidDueToVariance:                   s.InvalidDueToVariance,
				InvalidDueToOverexposure:               s.InvalidDueToOverexposure,
				InvalidDueToUnderexposure:              s.InvalidDueToUnderexposure,
				InvalidDueToTemporalVariance:           s.InvalidDueToTemporalVariance,
				InvalidDueToOutsideOfMeasurementRange:  s.InvalidDueToOutsideOfMeasurementRange,
				InvalidDueToRetroReflectorInterference: s.InvalidDueToRetroReflectorInterference,
				ContaminationError:                     s.ContaminationError,
				QualityClass:                           s.QualityClass,
				SlotActive:                             s.SlotActive,
			},
		})
	}
	return out
}

// Fields copies the field-evaluation list in input order.
func Fields(h records.Header, f *frame.SensorFrame) *records.FieldInformationArray {
	out := &records.FieldInformationArray{
		Header: h,
		Fields: make([]records.FieldInformation, 0, len(f.Fields)),
	}
	for _, fi := range f.Fields {
		out.Fields = append(out.Fields, records.FieldInformation{
			FieldID:     fi.FieldID,
			FieldSetID:  fi.FieldSetID,
			FieldActive: fi.Active,
			FieldResult: fi.Result,
			EvalMethod:  fi.EvalMethod,
		})
	}
	return out
}
