//go:build !linux

package blockdevice

import "github.com/pkg/errors"

// ErrUnsupportedPlatform is returned by the sector-size and size ioctls
// on platforms other than Linux; Device falls back to DefaultSectorSize
// and os.File.Stat respectively.
var ErrUnsupportedPlatform = errors.New("blockdevice: ioctl probing unsupported on this platform")

func sectorSizeIoctl(fd uintptr) (uint32, error) {
	return 0, ErrUnsupportedPlatform
}

func sizeBytesIoctl(fd uintptr) (uint64, error) {
	return 0, ErrUnsupportedPlatform
}
