package blockdevice

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestDevice(t *testing.T, size int64) *Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("create temp disk image: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate temp disk image: %v", err)
	}
	d, err := NewFromFile(f)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func Test_RegularFileFallsBackToDefaultSectorSize(t *testing.T) {
	d := newTestDevice(t, 1<<20)
	if d.SectorSize() != DefaultSectorSize {
		t.Fatalf("expected default sector size %d, got %d", DefaultSectorSize, d.SectorSize())
	}
}

func Test_LastLBA(t *testing.T) {
	d := newTestDevice(t, 512*100)
	if got, want := d.LastLBA(), uint64(99); got != want {
		t.Fatalf("expected last lba %d, got %d", want, got)
	}
}

func Test_ReadWriteRoundTrip(t *testing.T) {
	d := newTestDevice(t, 512*10)
	payload := bytes.Repeat([]byte{0xAB}, 512)
	if n, err := d.WriteLBA(3, payload); err != nil || n != len(payload) {
		t.Fatalf("WriteLBA: n=%d err=%v", n, err)
	}
	out := make([]byte, 512)
	if n, err := d.ReadLBA(3, out); err != nil || n != len(out) {
		t.Fatalf("ReadLBA: n=%d err=%v", n, err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("round trip mismatch")
	}
}

func Test_ReadLBA_OutOfRange(t *testing.T) {
	d := newTestDevice(t, 512*4)
	buf := make([]byte, 512)
	if _, err := d.ReadLBA(100, buf); err == nil {
		t.Fatalf("expected error reading out-of-range lba")
	}
}

func Test_ReadLBA_EmptyBuffer(t *testing.T) {
	d := newTestDevice(t, 512*4)
	if _, err := d.ReadLBA(0, nil); err != ErrNilBuffer {
		t.Fatalf("expected ErrNilBuffer, got %v", err)
	}
}

func Test_WriteLBA_LastSector(t *testing.T) {
	d := newTestDevice(t, 512*2)
	payload := bytes.Repeat([]byte{0x11}, 512)
	if _, err := d.WriteLBA(1, payload); err != nil {
		t.Fatalf("WriteLBA: %v", err)
	}
	out := make([]byte, 512)
	if _, err := d.ReadLBA(1, out); err != nil {
		t.Fatalf("ReadLBA: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("mismatch at last sector")
	}
}
