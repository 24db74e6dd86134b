package ldm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/google/uuid"

	"github.com/dynamic2basic/dynamic2basic/blockdevice"
)

// Fixed byte offsets into the 512-byte PRIVHEAD record. The struct is
// packed with no alignment padding; offsets are the running sum of the
// preceding field widths.
const (
	privHeadSize = 512

	offDiskGUID          = 48
	offDiskGroupGUID     = 176
	offDiskGroupName     = 240
	offLogicalDiskStart  = 283
	offLogicalDiskSize   = 291
	offLDMConfigStart    = 299
	offLDMConfigSize     = 307

	lenGUIDText  = 64
	lenGroupName = 32
)

// ReadPrivHead reads and parses the PRIVHEAD record at lba.
func ReadPrivHead(dev *blockdevice.Device, lba uint64) (PrivHead, error) {
	buf := make([]byte, privHeadSize)
	if _, err := dev.ReadLBA(lba, buf); err != nil {
		return PrivHead{}, errors.Wrapf(err, "ldm: read privhead at lba %d", lba)
	}
	if !bytes.Equal(buf[:8], []byte(privHeadMagic)) {
		return PrivHead{}, ErrNoPrivHead
	}

	diskGUIDText := cString(buf[offDiskGUID : offDiskGUID+lenGUIDText])
	diskGUID, err := uuid.Parse(diskGUIDText)
	if err != nil {
		return PrivHead{}, errors.Wrapf(ErrInvalidDiskGUID, "%q", diskGUIDText)
	}

	return PrivHead{
		DiskGUID:         diskGUID,
		DiskGroupGUID:    cString(buf[offDiskGroupGUID : offDiskGroupGUID+lenGUIDText]),
		DiskGroupName:    cString(buf[offDiskGroupName : offDiskGroupName+lenGroupName]),
		LogicalDiskStart: binary.BigEndian.Uint64(buf[offLogicalDiskStart:]),
		LogicalDiskSize:  binary.BigEndian.Uint64(buf[offLogicalDiskSize:]),
		ConfigStart:      binary.BigEndian.Uint64(buf[offLDMConfigStart:]),
		ConfigSize:       binary.BigEndian.Uint64(buf[offLDMConfigSize:]),
	}, nil
}

// cString trims a fixed-width, NUL-padded ASCII field at its first NUL
// byte, or returns it unmodified if none is present.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// readConfig reads the LDM configuration region described by head.
func readConfig(dev *blockdevice.Device, head PrivHead) ([]byte, error) {
	size := head.ConfigSize * uint64(dev.SectorSize())
	buf := make([]byte, size)
	if _, err := dev.ReadLBA(head.ConfigStart, buf); err != nil {
		return nil, errors.Wrap(err, "ldm: read config region")
	}
	return buf, nil
}

// tocBlockBitmapSize is sizeof(tocblock_bitmap): name[8] + flags1(2) +
// start(8) + size(8) + flags2(8).
const tocBlockBitmapSize = 8 + 2 + 8 + 8 + 8

// findConfigVMDBOffset locates the TOCBLOCK at 2*sectorSize bytes into
// config, reads its two bitmaps, and returns the byte offset of the
// VMDB within config.
func findConfigVMDBOffset(config []byte, sectorSize uint32) (uint64, error) {
	tocOff := 2 * uint64(sectorSize)
	if tocOff+8 > uint64(len(config)) {
		return 0, ErrNoTOCBlock
	}
	if !bytes.Equal(config[tocOff:tocOff+8], []byte(tocBlockMagic)) {
		return 0, ErrNoTOCBlock
	}

	// bitmap[0] starts 36 bytes into tocblock: magic(8)+seq1(4)+
	// padding1(4)+seq2(4)+padding2(16).
	bitmapBase := tocOff + 36
	for i := 0; i < 2; i++ {
		off := bitmapBase + uint64(i)*tocBlockBitmapSize
		if off+tocBlockBitmapSize > uint64(len(config)) {
			return 0, ErrNoConfigBitmap
		}
		name := cString(config[off : off+8])
		if name == tocBitmapConfigName {
			start := binary.BigEndian.Uint64(config[off+10:])
			return start * uint64(sectorSize), nil
		}
	}
	return 0, ErrNoConfigBitmap
}

// vmdbHeaderSize covers the fields this package reads out of the VMDB
// header: magic(4) + vblk_last(4) + vblk_size(4) + vblk_first_offset(4).
const vmdbHeaderSize = 16

// vmdbFields is the subset of the VMDB header this package consumes.
type vmdbFields struct {
	vblkSize        uint32
	vblkFirstOffset uint32
}

func readVMDBHeader(config []byte, vmdbOffset uint64) (vmdbFields, error) {
	if vmdbOffset+vmdbHeaderSize > uint64(len(config)) {
		return vmdbFields{}, ErrNoVMDB
	}
	hdr := config[vmdbOffset : vmdbOffset+vmdbHeaderSize]
	if !bytes.Equal(hdr[:4], []byte(vmdbMagic)) {
		return vmdbFields{}, ErrNoVMDB
	}
	return vmdbFields{
		vblkSize:        binary.BigEndian.Uint32(hdr[8:12]),
		vblkFirstOffset: binary.BigEndian.Uint32(hdr[12:16]),
	}, nil
}

const vblkHeadSize = 4 + 4 + 4 + 2 + 2 // magic + sequence_number + group_number + record_number + num_records

// fragmentGroup stages the fragments of one extended (multi-record)
// VBLK until every fragment has arrived.
type fragmentGroup struct {
	numRecords uint16
	found      uint16
	payload    []byte
	recordSize uint32
}

// Reader iterates the VBLK stream of one VMDB, assembling extended
// (multi-fragment) records and handing complete payloads to the
// per-type decoders in record.go as it goes.
type Reader struct {
	vmdb       []byte
	pos        int
	recordSize uint32
	groups     map[uint32]*fragmentGroup

	relations *Relations
}

// newReader positions a Reader at the start of the VBLK stream located
// at vmdbOffset within config.
func newReader(config []byte, vmdbOffset uint64, fields vmdbFields) *Reader {
	start := vmdbOffset + uint64(fields.vblkFirstOffset)
	return &Reader{
		vmdb:       config[start:],
		recordSize: fields.vblkSize,
		groups:     make(map[uint32]*fragmentGroup),
		relations:  newRelations(),
	}
}

// next returns the next complete, assembled VBLK payload along with
// its vblk_record header, or (vblkRecord{}, nil, false, nil) once the
// stream is exhausted (a slot whose magic isn't "VBLK").
func (r *Reader) next() (vblkRecord, []byte, bool, error) {
	payloadSize := r.recordSize - vblkHeadSize

	for {
		if r.pos+int(r.recordSize) > len(r.vmdb) {
			return vblkRecord{}, nil, false, nil
		}
		slot := r.vmdb[r.pos:]
		if !bytes.Equal(slot[:4], []byte(vblkMagic)) {
			return vblkRecord{}, nil, false, nil
		}

		groupNumber := binary.BigEndian.Uint32(slot[8:12])
		recordNumber := binary.BigEndian.Uint16(slot[12:14])
		numRecords := binary.BigEndian.Uint16(slot[14:16])

		if numRecords > 0 && recordNumber >= numRecords {
			return vblkRecord{}, nil, false, ErrInvalidRecord
		}

		fragment := slot[vblkHeadSize : vblkHeadSize+payloadSize]
		r.pos += int(r.recordSize)

		if numRecords > 1 {
			g, ok := r.groups[groupNumber]
			if !ok {
				g = &fragmentGroup{
					numRecords: numRecords,
					payload:    make([]byte, uint32(numRecords)*payloadSize),
					recordSize: payloadSize,
				}
				r.groups[groupNumber] = g
			}
			copy(g.payload[uint32(recordNumber)*payloadSize:], fragment)
			g.found++
			if g.found < g.numRecords {
				continue
			}
			delete(r.groups, groupNumber)

			rec, body, err := splitRecordHeader(g.payload)
			if err != nil {
				return vblkRecord{}, nil, false, err
			}
			return rec, body, true, nil
		}

		rec, body, err := splitRecordHeader(fragment)
		if err != nil {
			return vblkRecord{}, nil, false, err
		}
		return rec, body, true, nil
	}
}

func splitRecordHeader(payload []byte) (vblkRecord, []byte, error) {
	if len(payload) < 8 {
		return vblkRecord{}, nil, ErrCursorOverrun
	}
	rec := vblkRecord{
		Status: binary.BigEndian.Uint16(payload[0:2]),
		Flags:  payload[2],
		Type:   payload[3],
		Size:   binary.BigEndian.Uint32(payload[4:8]),
	}
	return rec, payload[8:], nil
}

// drain consumes the entire VBLK stream, dispatching each assembled
// record into r.relations. Fragment groups still incomplete at end of
// stream are discarded with a warning, per the extended-VBLK
// assembly's commit-on-complete design.
func (r *Reader) drain() (*Relations, error) {
	for {
		rec, body, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := r.dispatch(rec, body); err != nil {
			return nil, err
		}
	}

	if len(r.groups) > 0 {
		logrus.WithField("incomplete_groups", len(r.groups)).
			Warn("ldm: discarding partial extended-vblk groups at end of stream")
	}

	return r.relations, nil
}

func (r *Reader) dispatch(rec vblkRecord, body []byte) error {
	c := newCursor(body)
	switch rec.kind() {
	case VBLKTypePadding:
		return nil
	case VBLKTypeVolume:
		v, err := decodeVolume(c, rec.revision(), rec.Flags)
		if err != nil {
			return err
		}
		r.relations.addVolume(v)
	case VBLKTypeComponent:
		comp, err := decodeComponent(c, rec.revision(), rec.Flags)
		if err != nil {
			return err
		}
		r.relations.addComponent(comp)
	case VBLKTypePartition:
		p, err := decodePartition(c, rec.revision(), rec.Flags)
		if err != nil {
			return err
		}
		r.relations.addPartition(p)
	case VBLKTypeDisk:
		d, err := decodeDisk(c, rec.revision())
		if err != nil {
			return err
		}
		r.relations.addDisk(d)
	case VBLKTypeDiskGroup:
		dg, err := decodeDiskGroup(c, rec.revision())
		if err != nil {
			return err
		}
		r.relations.addDiskGroup(dg)
	default:
		return errors.Wrapf(ErrUnsupportedType, "type %#x", rec.kind())
	}
	return nil
}

// Load reads the PRIVHEAD at lba, its config region, the VMDB it
// locates, and parses the full VBLK stream into a Relations value.
func Load(dev *blockdevice.Device, lba uint64) (PrivHead, *Relations, error) {
	head, err := ReadPrivHead(dev, lba)
	if err != nil {
		return PrivHead{}, nil, err
	}

	config, err := readConfig(dev, head)
	if err != nil {
		return PrivHead{}, nil, err
	}

	vmdbOffset, err := findConfigVMDBOffset(config, dev.SectorSize())
	if err != nil {
		return PrivHead{}, nil, err
	}

	fields, err := readVMDBHeader(config, vmdbOffset)
	if err != nil {
		return PrivHead{}, nil, err
	}

	reader := newReader(config, vmdbOffset, fields)
	rel, err := reader.drain()
	if err != nil {
		return PrivHead{}, nil, err
	}
	return head, rel, nil
}
