//go:build linux

package blockdevice

import (
	"golang.org/x/sys/unix"
)

func sectorSizeIoctl(fd uintptr) (uint32, error) {
	sz, err := unix.IoctlGetInt(int(fd), unix.BLKSSZGET)
	if err != nil {
		return 0, err
	}
	return uint32(sz), nil
}

func sizeBytesIoctl(fd uintptr) (uint64, error) {
	return unix.IoctlGetUint64(int(fd), unix.BLKGETSIZE64)
}
