// Package blockdevice provides LBA-indexed positioned I/O over an open
// block device or regular file, with sector-size and device-size
// discovery.
package blockdevice

import (
	"os"

	"github.com/pkg/errors"
)

// DefaultSectorSize is used whenever the device's logical sector size
// cannot be queried (e.g. it isn't a block device, or the platform
// doesn't support the ioctl).
const DefaultSectorSize = 512

var (
	// ErrNilBuffer is returned when a read or write is attempted with a
	// nil or zero-length buffer.
	ErrNilBuffer = errors.New("blockdevice: buffer is nil or empty")
	// ErrLBAOutOfRange is returned when the requested starting LBA is
	// past the last addressable LBA on the device.
	ErrLBAOutOfRange = errors.New("blockdevice: lba out of range")
)

// Device wraps a file opened on a block device (or a regular file
// standing in for one, e.g. a disk image in tests) and exposes
// LBA-addressed positioned I/O.
type Device struct {
	f *os.File

	sectorSize uint32
	sizeBytes  uint64
}

// Open opens path for read-write positioned I/O and probes its sector
// size and total size. path is typically a block device node such as
// /dev/sdb; it may also be a regular file (disk image) for testing.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "blockdevice: open %s", path)
	}
	d, err := NewFromFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

// NewFromFile builds a Device around an already-open file, probing its
// sector size and total size. Used directly by tests that construct
// their own *os.File over a temp file or device node.
func NewFromFile(f *os.File) (*Device, error) {
	d := &Device{f: f}
	if err := d.probe(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) probe() error {
	sz, err := sectorSizeIoctl(d.f.Fd())
	if err != nil {
		sz = DefaultSectorSize
	}
	d.sectorSize = sz

	bytes, err := sizeBytesIoctl(d.f.Fd())
	if err != nil {
		info, statErr := d.f.Stat()
		if statErr != nil {
			return errors.Wrap(statErr, "blockdevice: stat")
		}
		bytes = uint64(info.Size())
	}
	d.sizeBytes = bytes
	return nil
}

// SectorSize returns the device's logical sector size in bytes.
func (d *Device) SectorSize() uint32 { return d.sectorSize }

// SizeBytes returns the total addressable size of the device in bytes.
func (d *Device) SizeBytes() uint64 { return d.sizeBytes }

// LastLBA returns the highest valid zero-based LBA on the device.
func (d *Device) LastLBA() uint64 {
	if d.sectorSize == 0 {
		return 0
	}
	sectors := d.sizeBytes / uint64(d.sectorSize)
	if sectors == 0 {
		return 0
	}
	return sectors - 1
}

// ReadLBA reads len(buf) bytes starting at lba*SectorSize, retrying on
// short reads until the buffer is filled or a hard error occurs. It
// returns the number of bytes transferred; zero signals a failure
// (bad LBA, empty buffer, or I/O error).
func (d *Device) ReadLBA(lba uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrNilBuffer
	}
	if lba > d.LastLBA() {
		return 0, ErrLBAOutOfRange
	}
	offset := int64(lba) * int64(d.sectorSize)
	total := 0
	for total < len(buf) {
		n, err := d.f.ReadAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			return 0, errors.Wrapf(err, "blockdevice: read lba %d", lba)
		}
		if n == 0 {
			return 0, errors.Errorf("blockdevice: short read at lba %d", lba)
		}
	}
	return total, nil
}

// WriteLBA writes len(buf) bytes starting at lba*SectorSize, retrying
// on short writes until the buffer is fully transferred or a hard
// error occurs.
func (d *Device) WriteLBA(lba uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrNilBuffer
	}
	if lba > d.LastLBA() {
		return 0, ErrLBAOutOfRange
	}
	offset := int64(lba) * int64(d.sectorSize)
	total := 0
	for total < len(buf) {
		n, err := d.f.WriteAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			return 0, errors.Wrapf(err, "blockdevice: write lba %d", lba)
		}
		if n == 0 {
			return 0, errors.Errorf("blockdevice: short write at lba %d", lba)
		}
	}
	return total, nil
}

// Close releases the underlying file.
func (d *Device) Close() error {
	return d.f.Close()
}
