package flashfs

import (
	"io"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "flash.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteReadRoundTripAcrossPages(t *testing.T) {
	db := openTestDB(t)
	f, err := db.Create("/flights/flight_00001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data := make([]byte, pageSize*3+17)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := db.Open("/flights/flight_00001")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	out := make([]byte, len(data))
	n, err := io.ReadFull(r, out)
	if err != nil {
		t.Fatalf("ReadFull: %v (n=%d)", err, n)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, out[i], data[i])
		}
	}
}

func TestListAndRemove(t *testing.T) {
	db := openTestDB(t)
	for _, n := range []string{"/flights/flight_00001", "/flights/flight_00002"} {
		if _, err := db.Create(n); err != nil {
			t.Fatalf("Create(%s): %v", n, err)
		}
	}
	names, err := db.List("/flights/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2: %v", len(names), names)
	}
	if err := db.Remove("/flights/flight_00001"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	names, _ = db.List("/flights/")
	if len(names) != 1 {
		t.Fatalf("after Remove, List returned %d names, want 1", len(names))
	}
}

func TestBlobRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.PutBlob("/flight_counter", []byte{1, 0, 0, 0}); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	got, ok := db.GetBlob("/flight_counter")
	if !ok {
		t.Fatal("GetBlob: not found")
	}
	if len(got) != 4 || got[0] != 1 {
		t.Fatalf("GetBlob returned %v", got)
	}
}
