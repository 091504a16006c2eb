package config

// Fields returns the field registry descriptors for every tunable named in
// spec.md (control/telemetry frequency, eliminator thresholds and
// hysteresis, FSM thresholds, recorder sizing, telemetry link parameters).
// This is the single source of truth for what the config store exposes;
// NewRegistry(Fields()) builds the boot-time registry.
func Fields() []Field {
	return []Field{
		{Name: "control_freq_hz", Mode: Direct, I32: 100, HasBound: true, Min: 10, Max: 1000},
		{Name: "telemetry_freq_hz", Mode: Direct, I32: 10, HasBound: true, Min: 1, Max: 100},

		// C2 eliminator.
		{Name: "accel_fault_threshold_g", Mode: Direct, IsFloat: true, F32: 3.0, HasBound: true, Min: 0.1, Max: 20},
		{Name: "baro_fault_threshold_pa", Mode: Direct, I32: 5000, HasBound: true, Min: 100, Max: 50000},
		{Name: "elim_sticky_n", Mode: Direct, I32: 10, HasBound: true, Min: 1, Max: 1000},
		{Name: "elim_clear_m", Mode: Direct, I32: 50, HasBound: true, Min: 1, Max: 1000},

		// C6 flight FSM.
		{Name: "stillness_gyro_threshold_rads", Mode: Direct, IsFloat: true, F32: 0.05, HasBound: true, Min: 0.001, Max: 5},
		{Name: "ground_stable_ticks", Mode: Direct, I32: 50, HasBound: true, Min: 1, Max: 100000},
		{Name: "liftoff_acc_threshold_ms2", Mode: Direct, IsFloat: true, F32: 35.0, HasBound: true, Min: 1, Max: 500},
		{Name: "liftoff_consec_ticks", Mode: Direct, I32: 10, HasBound: true, Min: 1, Max: 1000},
		{Name: "coast_consec_ticks", Mode: Direct, I32: 10, HasBound: true, Min: 1, Max: 1000},
		{Name: "apogee_consec_ticks", Mode: Direct, I32: 10, HasBound: true, Min: 1, Max: 1000},
		{Name: "calibrating_min_ticks", Mode: Direct, I32: 100, HasBound: true, Min: 1, Max: 100000},
		{Name: "main_altitude_m", Mode: Direct, IsFloat: true, Required: true, HasBound: true, Min: 1, Max: 100000},
		{Name: "main_deploy_delay_ms", Mode: Direct, I32: 1000, HasBound: true, Min: 0, Max: 600000},
		{Name: "touchdown_velocity_ms", Mode: Direct, IsFloat: true, F32: 2.0, HasBound: true, Min: 0, Max: 50},
		{Name: "touchdown_consec_ticks", Mode: Direct, I32: 30, HasBound: true, Min: 1, Max: 100000},

		// C8 recorder.
		{Name: "record_queue_size", Mode: Direct, I32: 512, HasBound: true, Min: 16, Max: 65536},
		{Name: "pre_thrusting_limit", Mode: Direct, I32: 400, HasBound: true, Min: 1, Max: 65536},
		{Name: "flash_sync_every_n_buffers", Mode: Direct, I32: 16, HasBound: true, Min: 1, Max: 4096},

		// C9 telemetry.
		{Name: "adaptive_power", Mode: Direct, I32: 1, HasBound: true, Min: 0, Max: 1},
		{Name: "power_level", Mode: Direct, I32: 2, HasBound: true, Min: 0, Max: 7},
		{Name: "testing_enabled", Mode: Direct, I32: 0, HasBound: true, Min: 0, Max: 1},
		{Name: "test_phrase", Mode: String, Str: "change-me"},
	}
}
