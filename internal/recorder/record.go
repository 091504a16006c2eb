// Package recorder implements the binary flight log (C8, spec.md §4.8)
// and its tagged-union record stream (spec.md §6).
//
// Grounded on the teacher's internal/storage package: both serialize a
// stream of heterogeneous typed entries into fixed transactional chunks,
// and both track a monotonically increasing file counter as the unit of
// rotation (storage's segment files vs. this package's /flights/flight_%05u
// numbering).
package recorder

import (
	"encoding/binary"
	"math"
)

// Tag identifies a RecordEntry's payload shape (spec.md §6's tag table).
type Tag uint32

const (
	TagIMU0              Tag = 0x01
	TagIMU1              Tag = 0x02
	TagIMU2              Tag = 0x04
	TagBaro0             Tag = 0x08
	TagBaro1             Tag = 0x10
	TagBaro2             Tag = 0x20
	TagMagneto           Tag = 0x40
	TagFlightInfo        Tag = 0x80
	TagFilteredDataInfo  Tag = 0x100
	TagFlightState       Tag = 0x200
	TagCovarianceInfo    Tag = 0x400
	TagSensorInfo        Tag = 0x800
	TagEventInfo         Tag = 0x1000
	TagErrorInfo         Tag = 0x2000
	TagOrientationInfo   Tag = 0x4000
	// TagGNSSInfo and TagVoltageInfo are supplemented pass-through records
	// (original_source/ carries GNSS fix and supply-voltage logging that
	// spec.md's distillation dropped; kept here since the telemetry codec
	// already reports both fields and the recorder is the natural place to
	// persist them for post-flight analysis).
	TagGNSSInfo    Tag = 0x8000
	TagVoltageInfo Tag = 0x10000
)

// Entry is a tagged-union flight log record. Only the fields relevant to
// Tag are meaningful; Encode dispatches on Tag to know which ones to
// serialize and how long the resulting payload is.
type Entry struct {
	Tag Tag
	Ts  uint32

	Accel [3]int16
	Gyro  [3]int16

	PressurePa  int32
	TempCentiC  int32

	Mag [3]int16

	Height, Velocity, Acceleration float32

	MeasAGL, MeasAcc, FiltAGL, FiltAcc float32

	Phase uint8

	HeightCov, VelCov float32

	FaultyIMU  [3]bool
	FaultyBaro [3]bool

	Event     uint8
	ActionIdx uint8

	ErrorCode uint32

	Quat [4]int16 // quaternion components * 10000

	LatE4, LonE4 int32
	AltM         int32
	FixQuality   uint8

	VoltageDeciVolts uint16
}

// Encode serializes e into a self-describing `{u32 tag LE, payload}`
// record per spec.md §6. The payload length is a pure function of Tag, so
// a reader never needs a length prefix beyond the tag itself.
func (e Entry) Encode() []byte {
	buf := make([]byte, 4, 4+32)
	binary.LittleEndian.PutUint32(buf, uint32(e.Tag))

	putU32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	putI32 := func(v int32) { putU32(uint32(v)) }
	putI16 := func(v int16) { buf = binary.LittleEndian.AppendUint16(buf, uint16(v)) }
	putF32 := func(v float32) { putU32(float32bits(v)) }
	putU16 := func(v uint16) { buf = binary.LittleEndian.AppendUint16(buf, v) }

	switch e.Tag {
	case TagIMU0, TagIMU1, TagIMU2:
		putU32(e.Ts)
		for _, v := range e.Accel {
			putI16(v)
		}
		for _, v := range e.Gyro {
			putI16(v)
		}
	case TagBaro0, TagBaro1, TagBaro2:
		putU32(e.Ts)
		putI32(e.PressurePa)
		putI32(e.TempCentiC)
	case TagMagneto:
		putU32(e.Ts)
		for _, v := range e.Mag {
			putI16(v)
		}
	case TagFlightInfo:
		putU32(e.Ts)
		putF32(e.Height)
		putF32(e.Velocity)
		putF32(e.Acceleration)
	case TagFilteredDataInfo:
		putU32(e.Ts)
		putF32(e.MeasAGL)
		putF32(e.MeasAcc)
		putF32(e.FiltAGL)
		putF32(e.FiltAcc)
	case TagFlightState:
		putU32(e.Ts)
		buf = append(buf, e.Phase)
	case TagCovarianceInfo:
		putU32(e.Ts)
		putF32(e.HeightCov)
		putF32(e.VelCov)
	case TagSensorInfo:
		putU32(e.Ts)
		for _, b := range e.FaultyIMU {
			buf = append(buf, boolByte(b))
		}
		for _, b := range e.FaultyBaro {
			buf = append(buf, boolByte(b))
		}
	case TagEventInfo:
		putU32(e.Ts)
		buf = append(buf, e.Event, e.ActionIdx)
	case TagErrorInfo:
		putU32(e.Ts)
		putU32(e.ErrorCode)
	case TagOrientationInfo:
		putU32(e.Ts)
		for _, v := range e.Quat {
			putI16(v)
		}
	case TagGNSSInfo:
		putU32(e.Ts)
		putI32(e.LatE4)
		putI32(e.LonE4)
		putI32(e.AltM)
		buf = append(buf, e.FixQuality)
	case TagVoltageInfo:
		putU32(e.Ts)
		putU16(e.VoltageDeciVolts)
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func float32bits(f float32) uint32 { return math.Float32bits(f) }
