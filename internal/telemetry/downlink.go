package telemetry

// Downlink is the CMD_TX payload: the flight computer's periodic status
// report, bit-packed into 15 bytes per spec.md §4.9's field table.
type Downlink struct {
	State            uint8 // flight phase, 0-7 mapped subset
	TimestampCentiS  uint16 // centiseconds since boot modulo 2^15
	Errors           uint8  // 6-bit bitfield
	LatE4, LonE4     int32  // degrees * 10000
	AltitudeM        int32
	VelocityMS       int32
	VoltageDeciVolts uint8
	PyroContinuity   uint8 // bit0=pyro1, bit1=pyro2
	TestingOn        bool
}

// Encode packs d into the 15-byte CMD_TX layout.
func (d Downlink) Encode() []byte {
	var w BitWriter
	w.WriteUint(uint64(d.State), 3)
	w.WriteUint(uint64(d.TimestampCentiS)&0x7FFF, 15)
	w.WriteUint(uint64(d.Errors)&0x3F, 6)
	w.WriteInt(int64(d.LatE4), 22)
	w.WriteInt(int64(d.LonE4), 22)
	w.WriteInt(int64(d.AltitudeM), 17)
	w.WriteInt(int64(d.VelocityMS), 10)
	w.WriteUint(uint64(d.VoltageDeciVolts), 8)
	w.WriteUint(uint64(d.PyroContinuity)&0x3, 2)
	w.WriteUint(boolBit(d.TestingOn), 1)
	buf := w.Bytes()
	for len(buf) < 15 {
		buf = append(buf, 0)
	}
	return buf[:15]
}

// DecodeDownlink is the inverse of Encode, used by ground-station test
// harnesses and by the decoder self-tests.
func DecodeDownlink(buf []byte) Downlink {
	r := NewBitReader(buf)
	d := Downlink{
		State:           uint8(r.ReadUint(3)),
		TimestampCentiS: uint16(r.ReadUint(15)),
		Errors:          uint8(r.ReadUint(6)),
		LatE4:           int32(r.ReadInt(22)),
		LonE4:           int32(r.ReadInt(22)),
		AltitudeM:       int32(r.ReadInt(17)),
		VelocityMS:      int32(r.ReadInt(10)),
	}
	d.VoltageDeciVolts = uint8(r.ReadUint(8))
	d.PyroContinuity = uint8(r.ReadUint(2))
	d.TestingOn = r.ReadUint(1) == 1
	return d
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// TargetPowerLevel implements the adaptive-power rule (spec.md §4.9):
// max power from THRUSTING entry until TOUCHDOWN, configured power
// otherwise, when adaptive_power is enabled.
func TargetPowerLevel(adaptivePowerOn bool, inPowerBoostWindow bool, configuredLevel, maxLevel uint8) uint8 {
	if adaptivePowerOn && inPowerBoostWindow {
		return maxLevel
	}
	return configuredLevel
}
