// Package errflags defines the process-wide sticky error bitfield
// (spec.md §7). Flags are OR'd in by any subsystem and are never cleared
// except at process reset; HealthMonitor samples the word to drive
// external indicators and rising-edge ERROR_INFO records.
package errflags

// Bit is one error flag. Values are a bitfield of at least 32 bits, grouped
// by the subsystem that raises them (spec.md §7).
type Bit = uint32

const (
	// Sensor.
	ImuFault Bit = 1 << iota
	BaroFault
	MagFault
	SensorAllFaulty

	// Filter.
	FilterAcc
	FilterHeight

	// Storage.
	LogFull
	FsWriteFail
	FsMountFail

	// Telemetry.
	TelemetryHot
	TelemetryCRC

	// Config.
	NonUserCfg
	NoPyro

	// Actuator.
	PyroFireFail
	ServoNotReady
)

var names = map[Bit]string{
	ImuFault:        "IMU_FAULT",
	BaroFault:       "BARO_FAULT",
	MagFault:        "MAG_FAULT",
	SensorAllFaulty: "SENSOR_ALL_FAULTY",
	FilterAcc:       "FILTER_ACC",
	FilterHeight:    "FILTER_HEIGHT",
	LogFull:         "LOG_FULL",
	FsWriteFail:     "FS_WRITE_FAIL",
	FsMountFail:     "FS_MOUNT_FAIL",
	TelemetryHot:    "TELEMETRY_HOT",
	TelemetryCRC:    "TELEMETRY_CRC",
	NonUserCfg:      "NON_USER_CFG",
	NoPyro:          "NO_PYRO",
	PyroFireFail:    "PYRO_FIRE_FAIL",
	ServoNotReady:   "SERVO_NOT_READY",
}

// Names returns the human-readable names of every bit set in w, in
// ascending bit order. Used for logging and the CLI's (out-of-scope)
// status command.
func Names(w uint32) []string {
	var out []string
	for bit := Bit(1); bit != 0; bit <<= 1 {
		if w&bit != 0 {
			if n, ok := names[bit]; ok {
				out = append(out, n)
			} else {
				out = append(out, "RESERVED")
			}
		}
	}
	return out
}

// Downlink6 packs the six downlink error bits in the order spec.md §4.9
// requires: {NON_USER_CFG, LOG_FULL, FILTER, TELEMETRY_HOT, NO_PYRO,
// reserved}. FILTER collapses FilterAcc|FilterHeight into one bit, since
// the downlink field has no room to distinguish them.
func Downlink6(w uint32) uint8 {
	var out uint8
	if w&NonUserCfg != 0 {
		out |= 1 << 0
	}
	if w&LogFull != 0 {
		out |= 1 << 1
	}
	if w&(FilterAcc|FilterHeight) != 0 {
		out |= 1 << 2
	}
	if w&TelemetryHot != 0 {
		out |= 1 << 3
	}
	if w&NoPyro != 0 {
		out |= 1 << 4
	}
	// bit 5 reserved, always 0.
	return out
}
