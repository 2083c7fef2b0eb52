package records

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Every record carries its header as field 1. Header fields:
//
//	1 stamp    google.protobuf.Timestamp
//	2 frame_id string
//	3 seq      uint64
const headerField protowire.Number = 1

// ErrNilRecord is returned by Marshal for a nil record.
var ErrNilRecord = errors.New("nil record")

var stampOpts = proto.MarshalOptions{Deterministic: true}

// Marshal encodes rec in protobuf wire format. Encoding is deterministic:
// equal records always produce identical bytes.
func Marshal(rec Record) ([]byte, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	h := rec.RecordHeader()
	hb, err := appendHeader(nil, h)
	if err != nil {
		return nil, err
	}
	b := protowire.AppendTag(nil, headerField, protowire.BytesType)
	b = protowire.AppendBytes(b, hb)
	return rec.appendWire(b), nil
}

func appendHeader(b []byte, h Header) ([]byte, error) {
	e := encoder{b: b}
	if !h.Stamp.IsZero() {
		ts, err := stampOpts.Marshal(timestamppb.New(h.Stamp))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stamp: %w", err)
		}
		e.bytes(1, ts)
	}
	e.string(2, h.FrameID)
	e.uint(3, h.Seq)
	return e.b, nil
}

// DecodeHeader reads the header of an encoded record without decoding the
// record body.
func DecodeHeader(b []byte) (Header, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Header{}, protowire.ParseError(n)
		}
		b = b[n:]
		if num == headerField && typ == protowire.BytesType {
			hb, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Header{}, protowire.ParseError(n)
			}
			return decodeHeader(hb)
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return Header{}, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return Header{}, errors.New("record has no header")
}

func decodeHeader(b []byte) (Header, error) {
	var h Header
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Header{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Header{}, protowire.ParseError(n)
			}
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return Header{}, fmt.Errorf("failed to unmarshal stamp: %w", err)
			}
			h.Stamp = ts.AsTime()
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Header{}, protowire.ParseError(n)
			}
			h.FrameID = v
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Header{}, protowire.ParseError(n)
			}
			h.Seq = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Header{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return h, nil
}

// encoder appends proto3 fields, omitting zero scalars.
type encoder struct {
	b []byte
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

func (e *encoder) double(num protowire.Number, v float64) {
	if math.Float64bits(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.Fixed64Type)
	e.b = protowire.AppendFixed64(e.b, math.Float64bits(v))
}

func (e *encoder) string(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) doubles(num protowire.Number, vs []float64) {
	if len(vs) == 0 {
		return
	}
	packed := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	e.bytes(num, packed)
}

func (e *encoder) message(num protowire.Number, fill func(sub *encoder)) {
	var sub encoder
	fill(&sub)
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, sub.b)
}

func (r *CameraInfo) appendWire(b []byte) []byte {
	e := encoder{b: b}
	e.uint(2, uint64(r.Height))
	e.uint(3, uint64(r.Width))
	e.string(4, r.DistortionModel)
	e.doubles(5, r.D)
	e.doubles(6, r.K[:])
	e.doubles(7, r.R[:])
	e.doubles(8, r.P[:])
	return e.b
}

func (r *PointCloud) appendWire(b []byte) []byte {
	e := encoder{b: b}
	e.uint(2, uint64(r.Height))
	e.uint(3, uint64(r.Width))
	for _, f := range r.Fields {
		e.message(4, func(sub *encoder) {
			sub.string(1, f.Name)
			sub.uint(2, uint64(f.Offset))
			sub.uint(3, uint64(f.Datatype))
			sub.uint(4, uint64(f.Count))
		})
	}
	e.bool(5, r.IsBigEndian)
	e.uint(6, uint64(r.PointStep))
	e.uint(7, uint64(r.RowStep))
	e.bytes(8, r.Data)
	e.bool(9, r.IsDense)
	return e.b
}

func (r *Image) appendWire(b []byte) []byte {
	e := encoder{b: b}
	e.uint(2, uint64(r.Height))
	e.uint(3, uint64(r.Width))
	e.string(4, r.Encoding)
	e.bool(5, r.IsBigEndian)
	e.uint(6, uint64(r.Step))
	e.bytes(7, r.Data)
	return e.b
}

func appendVector3(e *encoder, num protowire.Number, v Vector3) {
	e.message(num, func(sub *encoder) {
		sub.double(1, v.X)
		sub.double(2, v.Y)
		sub.double(3, v.Z)
	})
}

func (r *IMU) appendWire(b []byte) []byte {
	e := encoder{b: b}
	e.message(2, func(sub *encoder) {
		sub.double(1, r.Orientation.X)
		sub.double(2, r.Orientation.Y)
		sub.double(3, r.Orientation.Z)
		sub.double(4, r.Orientation.W)
	})
	appendVector3(&e, 3, r.AngularVelocity)
	appendVector3(&e, 4, r.LinearAcceleration)
	return e.b
}

func (r *DeviceStatus) appendWire(b []byte) []byte {
	e := encoder{b: b}
	e.uint(2, uint64(r.Status))
	e.message(3, func(sub *encoder) {
		g := r.GeneralStatus
		sub.bool(1, g.RunModeActive)
		sub.bool(2, g.DeviceError)
		sub.bool(3, g.ApplicationError)
		sub.bool(4, g.ContaminationWarning)
		sub.bool(5, g.ContaminationError)
		sub.bool(6, g.DeadZoneDetection)
		sub.bool(7, g.TemperatureWarning)
		sub.bool(8, g.WaitForInput)
		sub.bool(9, g.WaitForCluster)
	})
	e.uint(4, uint64(r.COPNonSafetyRelated))
	e.uint(5, uint64(r.COPSafetyRelated))
	e.uint(6, uint64(r.COPResetRequired))
	e.message(7, func(sub *encoder) {
		m := r.ActiveMonitoringCase
		sub.uint(1, uint64(m.MonitoringCase1))
		sub.uint(2, uint64(m.MonitoringCase2))
		sub.uint(3, uint64(m.MonitoringCase3))
		sub.uint(4, uint64(m.MonitoringCase4))
	})
	e.uint(8, uint64(r.ContaminationLevel))
	return e.b
}

func appendPins(e *encoder, num protowire.Number, p Pins) {
	e.message(num, func(sub *encoder) {
		sub.bool(1, p.Pin5)
		sub.bool(2, p.Pin6)
		sub.bool(3, p.Pin7)
		sub.bool(4, p.Pin8)
	})
}

func (r *CameraIO) appendWire(b []byte) []byte {
	e := encoder{b: b}
	appendPins(&e, 2, r.Configured)
	appendPins(&e, 3, r.Direction)
	appendPins(&e, 4, r.InputValues)
	appendPins(&e, 5, r.OutputValues)
	e.message(6, func(sub *encoder) {
		sub.bool(1, r.OSSDsState.OSSD1A)
		sub.bool(2, r.OSSDsState.OSSD1B)
		sub.bool(3, r.OSSDsState.OSSD2A)
		sub.bool(4, r.OSSDsState.OSSD2B)
	})
	e.uint(7, uint64(r.OSSDsDynCount))
	e.uint(8, uint64(r.OSSDsCRC))
	e.uint(9, uint64(r.OSSDsIOStatus))
	e.uint(10, uint64(r.DynamicSpeedA))
	e.uint(11, uint64(r.DynamicSpeedB))
	e.uint(12, uint64(r.DynamicValidFlags))
	return e.b
}

func (r *ROIArray) appendWire(b []byte) []byte {
	e := encoder{b: b}
	for _, roi := range r.ROIs {
		e.message(2, func(sub *encoder) {
			sub.uint(1, uint64(roi.ID))
			sub.uint(2, uint64(roi.DistanceValue))
			sub.message(3, func(res *encoder) {
				d := roi.ResultData
				res.bool(1, d.TaskResult)
				res.bool(2, d.ResultSafe)
				res.bool(3, d.ResultValid)
				res.bool(4, d.DistanceValid)
				res.bool(5, d.DistanceSafe)
			})
			sub.message(4, func(saf *encoder) {
				s := roi.SafetyData
				saf.bool(1, s.InvalidDueToInvalidPixels)
				saf.bool(2, s.InvalidDueToVariance)
				saf.bool(3, s.InvalidDueToOverexposure)
				saf.bool(4, s.InvalidDueToUnderexposure)
				saf.bool(5, s.InvalidDueToTemporalVariance)
				saf.bool(6, s.InvalidDueToOutsideOfMeasurementRange)
				saf.bool(7, s.InvalidDueToRetroReflectorInterference)
				saf.bool(8, s.ContaminationError)
				saf.uint(9, uint64(s.QualityClass))
				saf.bool(10, s.SlotActive)
			})
		})
	}
	return e.b
}

func (r *FieldInformationArray) appendWire(b []byte) []byte {
	e := encoder{b: b}
	for _, f := range r.Fields {
		e.message(2, func(sub *encoder) {
			sub.uint(1, uint64(f.FieldID))
			sub.uint(2, uint64(f.FieldSetID))
			sub.bool(3, f.FieldActive)
			sub.uint(4, uint64(f.FieldResult))
			sub.uint(5, uint64(f.EvalMethod))
		})
	}
	return e.b
}
