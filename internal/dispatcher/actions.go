// Package dispatcher implements the event->action dispatcher and the
// one-shot event timers (C7, spec.md §4.7).
//
// Grounded on the teacher's internal/gossip/quorum.go ChannelPartitionSink:
// both are a bounded, non-blocking channel sink where overflow increments a
// drop counter instead of blocking the producer.
package dispatcher

// ActionKind enumerates the effects the dispatcher can drive, per
// spec.md §4.7's action list.
type ActionKind uint8

const (
	NoOp ActionKind = iota
	FirePyro
	SetServo
	StartRecorder
	StopRecorder
	PlayTone
	SetLED
)

func (k ActionKind) String() string {
	switch k {
	case NoOp:
		return "NO_OP"
	case FirePyro:
		return "FIRE_PYRO"
	case SetServo:
		return "SET_SERVO"
	case StartRecorder:
		return "START_RECORDER"
	case StopRecorder:
		return "STOP_RECORDER"
	case PlayTone:
		return "PLAY_TONE"
	case SetLED:
		return "SET_LED"
	default:
		return "UNKNOWN"
	}
}

// Action is a single dispatchable effect with kind-specific parameters.
// Only the fields relevant to Kind are meaningful, the same sum-type-via-
// struct shape spec.md's RecordEntry tag table uses for the flight log.
type Action struct {
	Kind ActionKind

	// FirePyro / SetServo
	Channel int
	Level   int

	// PlayTone
	FreqHz   int
	DurMs    int

	// SetLED
	On bool
}
