package ldm

import "github.com/pkg/errors"

var (
	ErrNoPrivHead          = errors.New("ldm: PRIVHEAD magic not found")
	ErrNoTOCBlock          = errors.New("ldm: TOCBLOCK magic not found")
	ErrNoConfigBitmap      = errors.New("ldm: TOCBLOCK has no \"config\" bitmap")
	ErrNoVMDB              = errors.New("ldm: VMDB magic not found")
	ErrInvalidDiskGUID     = errors.New("ldm: PRIVHEAD disk_guid is not a valid UUID")
	ErrUnsupportedRevision = errors.New("ldm: unsupported VBLK record revision")
	ErrUnsupportedType     = errors.New("ldm: unrecognized VBLK record type")
	ErrUnsupportedVolume   = errors.New("ldm: unsupported volume type")
	ErrRAID5Unsupported    = errors.New("ldm: RAID5 volumes are not supported")
	ErrUnsupportedComponent = errors.New("ldm: unsupported component type")
	ErrInvalidRecord       = errors.New("ldm: vblk record_number >= num_records")
	ErrVarintTooWide       = errors.New("ldm: varint length byte exceeds target width")
	ErrCursorOverrun       = errors.New("ldm: attempted read past declared record size")
	ErrDiskNotFound        = errors.New("ldm: current disk guid not present among parsed Disk records")
	ErrOrphanComponent     = errors.New("ldm: partition references a component id with no matching Component record")
	ErrOrphanVolume        = errors.New("ldm: component references a volume id with no matching Volume record")
)
