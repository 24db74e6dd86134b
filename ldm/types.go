// Package ldm parses Windows Logical Disk Manager "dynamic disk"
// metadata: the PRIVHEAD/TOCBLOCK/VMDB preamble and the VBLK record
// stream it locates, joined into a flat list of basic partition ranges.
//
// Every multi-byte field in this package's on-disk structures is
// big-endian, the opposite of the GPT/MBR codecs; callers must not
// share a byte-order assumption across package boundaries.
package ldm

import "github.com/google/uuid"

const (
	MBRPrivHeadSector uint64 = 6 // fixed PRIVHEAD location on MBR-LDM disks

	privHeadMagic = "PRIVHEAD"
	tocBlockMagic = "TOCBLOCK"
	vmdbMagic     = "VMDB"
	vblkMagic     = "VBLK"

	tocBitmapConfigName = "config"
)

// VBLK type values, the low nibble of a vblk_record's type_and_revision
// byte.
const (
	VBLKTypePadding    uint8 = 0x0
	VBLKTypeVolume     uint8 = 0x1
	VBLKTypeComponent  uint8 = 0x2
	VBLKTypePartition  uint8 = 0x3
	VBLKTypeDisk       uint8 = 0x4
	VBLKTypeDiskGroup  uint8 = 0x5
)

// Volume type byte.
const (
	VolumeTypeGen   uint8 = 0x3
	VolumeTypeRAID5 uint8 = 0x4
)

// Volume optional-field flag bits, checked in this order (mutually
// exclusive in observed data: only the first matching bit is decoded).
const (
	VolumeFlagID1       uint8 = 0x08
	VolumeFlagID2       uint8 = 0x20
	VolumeFlagSize      uint8 = 0x80
	VolumeFlagDriveHint uint8 = 0x02
)

// Component type byte.
const (
	ComponentTypeStriped uint8 = 0x1
	ComponentTypeSpanned uint8 = 0x2
	ComponentTypeRAID    uint8 = 0x3
)

// ComponentFlagEnable gates the trailing chunk_size/columns pair.
const ComponentFlagEnable uint8 = 0x10

// PartitionFlagIndex gates the trailing index field.
const PartitionFlagIndex uint8 = 0x08

// PrivHead is the root LDM header, read as a fixed 512-byte record at
// MBRPrivHeadSector (MBR path) or at the LDM-metadata GPT entry's
// last LBA (GPT path).
type PrivHead struct {
	DiskGUID         uuid.UUID
	DiskGroupGUID    string
	DiskGroupName    string
	LogicalDiskStart uint64
	LogicalDiskSize  uint64
	ConfigStart      uint64 // ldm_config_start, in LBA
	ConfigSize       uint64 // ldm_config_size, in sectors
}

// tocBitmap names one of the two regions listed in TOCBLOCK.
type tocBitmap struct {
	name  string
	start uint64 // sectors into the config region
	size  uint64 // sectors
}

// vblkHead holds the 12 bytes that follow the 4-byte "VBLK" magic in
// the 16-byte head at the start of each vblk_size-sized record slot in
// the VMDB's VBLK stream.
type vblkHead struct {
	SequenceNumber uint32
	GroupNumber    uint32
	RecordNumber   uint16
	NumRecords     uint16
}

// vblkRecord is the fixed 8-byte header of an assembled VBLK payload.
type vblkRecord struct {
	Status uint16
	Flags  uint8
	Type   uint8 // low nibble = kind, high nibble = revision
	Size   uint32
}

func (r vblkRecord) kind() uint8     { return r.Type & 0x0F }
func (r vblkRecord) revision() uint8 { return (r.Type & 0xF0) >> 4 }

// Disk is one LDM disk record (VBLK type 4).
type Disk struct {
	ID   uint32
	Name string
	GUID uuid.UUID
}

// DiskGroup is one LDM disk-group record (VBLK type 5).
type DiskGroup struct {
	ID   uint32
	Name string
}

// Component is one LDM component record (VBLK type 2). Only
// COMPONENT_TYPE_SPANNED components participate in resolution.
type Component struct {
	ID          uint32
	Name        string
	Type        uint8
	NumOfParts  uint32
	VolumeID    uint32
	ChunkSize   uint64
	Columns     uint32
}

// Partition is one LDM partition record (VBLK type 3): a contiguous
// sector range on the physical disk, relative to the disk's
// logical-disk-start.
type Partition struct {
	ID            uint32
	Name          string
	Start         uint64 // LBA, relative to logical_disk_start
	VolumeOffset  uint64
	Size          uint64 // sectors
	ComponentID   uint32
	DiskID        uint32
	Index         uint32
}

// Volume is one LDM volume record (VBLK type 1). Only VolumeTypeGen
// volumes participate in resolution; VolumeTypeRAID5 is recognized and
// explicitly rejected.
type Volume struct {
	ID          uint32
	Name        string
	Type        uint8
	Flags       uint8
	NumOfComps  uint32
	Size        uint64
	PartType    uint8
	GUID        uuid.UUID
	ID1, ID2    string
	Size1       uint64
	DriveHint   string
}

// PartitionRange is the resolver's output: an absolute, device-relative
// sector range (start LBA and size in sectors) ready to become a
// basic-data GPT entry or MBR partition record.
type PartitionRange struct {
	AbsoluteStart uint64
	Offset        uint64
	Size          uint64
	PartType      uint8
}
