// Package gpt implements the GPT header/entry on-disk layout, CRC32
// validation, and read/write primitives described by the UEFI
// specification (https://uefi.org/specifications).
package gpt

import (
	"encoding/binary"

	"github.com/Microsoft/go-winio/pkg/guid"
)

const (
	SectorSizeLogical uint32 = 512 // conventional logical sector size

	PrimaryHeaderLBA     uint64 = 1
	PrimaryEntryArrayLBA uint64 = 2

	HeaderSignature uint64 = 0x5452415020494645 // ASCII "EFI PART"
	HeaderRevision  uint32 = 0x00010000

	ProtectiveMBRSignature uint16 = 0xAA55
	ProtectiveMBRTypeOS    uint8  = 0xEE
)

var (
	SizeOfHeaderInBytes  = uint32(binary.Size(Header{}))
	SizeOfPartitionEntry = uint32(binary.Size(PartitionEntry{}))

	// PartitionBasicDataGUID is the GPT partition type GUID for an
	// ordinary, directly mountable filesystem partition
	// (EBD0A0A2-B9E5-4433-87C0-68B6B72699C7).
	PartitionBasicDataGUID = guid.GUID{
		Data1: 0xEBD0A0A2,
		Data2: 0xB9E5,
		Data3: 0x4433,
		Data4: [8]uint8{0x87, 0xC0, 0x68, 0xB6, 0xB7, 0x26, 0x99, 0xC7},
	}

	// PartitionLDMMetadataGUID marks an LDM database partition.
	PartitionLDMMetadataGUID = guid.GUID{
		Data1: 0x5808C8AA,
		Data2: 0x7E8F,
		Data3: 0x42E0,
		Data4: [8]uint8{0x85, 0xD2, 0xE1, 0xE9, 0x04, 0x34, 0xCF, 0xB3},
	}

	// PartitionLDMDataGUID marks an LDM simple/spanned/mirrored data
	// partition.
	PartitionLDMDataGUID = guid.GUID{
		Data1: 0xAF9B60A0,
		Data2: 0x1431,
		Data3: 0x4F62,
		Data4: [8]uint8{0xBC, 0x68, 0x33, 0x11, 0x71, 0x4A, 0x69, 0xAD},
	}
)

// Header is the 92-byte (plus reserved padding to sector size) GPT
// header structure.
type Header struct {
	Signature                uint64
	Revision                 uint32
	HeaderSize               uint32
	HeaderCRC32              uint32
	Reserved                 uint32
	CurrentLBA               uint64
	AlternateLBA             uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 guid.GUID
	PartitionEntryLBA        uint64
	NumberOfPartitionEntries uint32
	SizeOfPartitionEntry     uint32
	PartitionEntryArrayCRC32 uint32
}

// PartitionEntry is a single 128-byte GPT partition entry.
type PartitionEntry struct {
	PartitionTypeGUID   guid.GUID
	UniquePartitionGUID guid.GUID
	FirstLBA            uint64
	LastLBA             uint64
	Flags               uint64
	PartitionName       [72]byte // UTF-16LE
}

// IsZero reports whether the entry is the all-zero "free slot" value.
func (e PartitionEntry) IsZero() bool {
	return e == PartitionEntry{}
}
