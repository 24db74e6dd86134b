package mbr

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dynamic2basic/dynamic2basic/blockdevice"
)

var (
	ErrBadSignature    = errors.New("mbr: boot signature mismatch")
	ErrTooManyEntries  = errors.New("mbr: more than four partitions requested")
)

var sizeOfTable = binary.Size(Table{})

// Read reads and validates the legacy MBR from LBA 0.
func Read(dev *blockdevice.Device) (Table, error) {
	buf := make([]byte, dev.SectorSize())
	if _, err := dev.ReadLBA(0, buf); err != nil {
		return Table{}, errors.Wrap(err, "mbr: read lba 0")
	}

	var t Table
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &t); err != nil {
		return Table{}, errors.Wrap(err, "mbr: decode")
	}
	if t.BootSignature != Signature {
		return Table{}, ErrBadSignature
	}
	return t, nil
}

// Write encodes t and writes it to LBA 0, padding up to the device's
// sector size with the existing boot code left untouched by callers
// that round-tripped it through Read.
func Write(dev *blockdevice.Device, t Table) error {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, t); err != nil {
		return errors.Wrap(err, "mbr: encode")
	}
	raw := buf.Bytes()

	sector := make([]byte, dev.SectorSize())
	if uint32(len(raw)) > dev.SectorSize() {
		return errors.New("mbr: encoded table larger than device sector size")
	}
	copy(sector, raw)
	if _, err := dev.WriteLBA(0, sector); err != nil {
		return errors.Wrap(err, "mbr: write lba 0")
	}
	return nil
}

// NewProtective builds a legacy MBR containing a single protective
// 0xEE partition spanning the whole disk, as written ahead of a GPT
// header at LBA 1.
func NewProtective(lastLBA uint64) Table {
	size := lastLBA
	if size > 0xFFFFFFFF {
		size = 0xFFFFFFFF
	}
	c, h, s := CHSFromLBA(1)
	ce, he, se := CHSFromLBA(lastLBA)
	t := Table{BootSignature: Signature}
	t.Partition[0] = Partition{
		BootIndicator: BootIndicatorNonBootable,
		StartHead:     h,
		StartSector:   s,
		StartTrack:    c,
		OSType:        PartitionTypeEFIProtective,
		EndHead:       he,
		EndSector:     se,
		EndTrack:      ce,
		StartingLBA:   1,
		SizeInLBA:     uint32(size),
	}
	return t
}

// CHSFromLBA converts a zero-based LBA into the packed CHS triple used
// by legacy partition records: (cylinder, head, sector) with the two
// high cylinder bits folded into the sector byte. LBAs beyond the
// 1023/255/63 CHS addressing limit saturate to (0xFF, 0xFF, 0xFF).
func CHSFromLBA(lba uint64) (cylinder, head, sector uint8) {
	if lba > maxCHSLBA {
		return 0xFF, 0xFF, 0xFF
	}

	c := lba / (255 * 63)
	h := (lba / 63) % 255
	s := lba % 63

	cylinder = uint8(c)
	head = uint8(h)
	sector = uint8(s) | uint8((c>>2)&0xC0)
	return cylinder, head, sector
}
