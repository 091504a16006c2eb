package config

import "testing"

func TestDefaultsRequiredFieldPresent(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	f := r.Field("main_altitude_m")
	if f == nil || f.F32 == 0 {
		t.Fatalf("main_altitude_m not populated by defaults seed")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if err := r.SetFloat("power_level", 5); err != nil {
		t.Fatalf("SetFloat: %v", err)
	}

	blob, err := Save(r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(blob, Fields())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Field("power_level").I32 != 5 {
		t.Errorf("power_level = %d, want 5", loaded.Field("power_level").I32)
	}
	if loaded.Field("main_altitude_m").F32 != r.Field("main_altitude_m").F32 {
		t.Errorf("main_altitude_m round-trip mismatch")
	}
}

func TestLoadRejectsTamperedBlob(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	blob, err := Save(r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	tampered := append([]byte(nil), blob...)
	tampered[0] ^= 0xFF

	if _, err := Load(tampered, Fields()); err == nil {
		t.Fatal("Load accepted a tampered blob")
	}
}

func TestSetFloatBounds(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if err := r.SetFloat("power_level", 99); err == nil {
		t.Fatal("SetFloat accepted an out-of-bounds value")
	}
}

func TestGetBySubstring(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	matches := r.Get("touchdown")
	if len(matches) != 2 {
		t.Fatalf("Get(touchdown) = %d matches, want 2", len(matches))
	}
}
