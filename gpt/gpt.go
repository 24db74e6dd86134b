package gpt

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/dynamic2basic/dynamic2basic/blockdevice"
)

var (
	ErrBadSignature   = errors.New("gpt: header signature mismatch")
	ErrHeaderTooSmall = errors.New("gpt: header_size smaller than the fixed header struct")
	ErrHeaderTooLarge = errors.New("gpt: header_size larger than the sector size")
	ErrBadHeaderCRC   = errors.New("gpt: header CRC32 mismatch")
	ErrBadEntryCRC    = errors.New("gpt: partition entry array CRC32 mismatch")
)

// ComputeHeaderCRC32 returns the CRC-32/ISO-HDLC checksum of h as it
// would appear on disk: header_crc32 zeroed, computed over exactly
// h.HeaderSize bytes.
func ComputeHeaderCRC32(h Header) (uint32, error) {
	buf := &bytes.Buffer{}
	h.HeaderCRC32 = 0
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return 0, errors.Wrap(err, "gpt: encode header for crc")
	}
	b := buf.Bytes()
	if h.HeaderSize > uint32(len(b)) {
		// bytes past the fixed struct are the reserved tail, which
		// WriteHeader writes as zeros
		b = append(b, make([]byte, h.HeaderSize-uint32(len(b)))...)
	}
	return crc32.ChecksumIEEE(b[:h.HeaderSize]), nil
}

// ComputeEntryArrayCRC32 returns the CRC-32/ISO-HDLC checksum of the
// on-disk encoding of entries.
func ComputeEntryArrayCRC32(entries []PartitionEntry) (uint32, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, entries); err != nil {
		return 0, errors.Wrap(err, "gpt: encode entries for crc")
	}
	return crc32.ChecksumIEEE(buf.Bytes()), nil
}

func decodeHeader(buf []byte) (Header, error) {
	var h Header
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &h); err != nil {
		return Header{}, errors.Wrap(err, "gpt: decode header")
	}
	return h, nil
}

// readHeaderAt reads and validates the header at the given LBA:
// signature, header_size bounds, and CRC32. header_crc32 in the
// returned Header is left as the on-disk value it was validated
// against.
func readHeaderAt(dev *blockdevice.Device, lba uint64) (Header, error) {
	buf := make([]byte, dev.SectorSize())
	if _, err := dev.ReadLBA(lba, buf); err != nil {
		return Header{}, errors.Wrapf(err, "gpt: read header at lba %d", lba)
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return Header{}, err
	}
	if h.Signature != HeaderSignature {
		return Header{}, ErrBadSignature
	}
	if h.HeaderSize < SizeOfHeaderInBytes {
		return Header{}, ErrHeaderTooSmall
	}
	if h.HeaderSize > dev.SectorSize() {
		return Header{}, ErrHeaderTooLarge
	}

	origCRC := h.HeaderCRC32
	computed, err := ComputeHeaderCRC32(h)
	if err != nil {
		return Header{}, err
	}
	if computed != origCRC {
		return Header{}, ErrBadHeaderCRC
	}
	h.HeaderCRC32 = origCRC
	return h, nil
}

// ReadMainHeader reads the primary GPT header at LBA 1.
func ReadMainHeader(dev *blockdevice.Device) (Header, error) {
	return readHeaderAt(dev, PrimaryHeaderLBA)
}

// ReadSecondHeader reads the secondary (alternate) GPT header at the
// device's last LBA.
func ReadSecondHeader(dev *blockdevice.Device) (Header, error) {
	return readHeaderAt(dev, dev.LastLBA())
}

// ReadHeader reads the primary header, falling back to the secondary
// header on any failure (bad signature, bad size, or bad CRC).
func ReadHeader(dev *blockdevice.Device) (Header, error) {
	h, err := ReadMainHeader(dev)
	if err == nil {
		return h, nil
	}
	return ReadSecondHeader(dev)
}

// ReadEntries reads h.NumberOfPartitionEntries entries of
// h.SizeOfPartitionEntry bytes starting at h.PartitionEntryLBA, and
// validates the array against h.PartitionEntryArrayCRC32.
func ReadEntries(dev *blockdevice.Device, h Header) ([]PartitionEntry, error) {
	entrySize := uint64(h.SizeOfPartitionEntry)
	total := entrySize * uint64(h.NumberOfPartitionEntries)

	sectorSize := uint64(dev.SectorSize())
	// Entry arrays are sector-aligned per the UEFI spec; read sector by
	// sector starting at PartitionEntryLBA.
	sectorsNeeded := (total + sectorSize - 1) / sectorSize
	raw := make([]byte, sectorsNeeded*sectorSize)
	for i := uint64(0); i < sectorsNeeded; i++ {
		if _, err := dev.ReadLBA(h.PartitionEntryLBA+i, raw[i*sectorSize:(i+1)*sectorSize]); err != nil {
			return nil, errors.Wrap(err, "gpt: read partition entry array")
		}
	}
	buf := raw[:total]

	crc := crc32.ChecksumIEEE(buf)
	if crc != h.PartitionEntryArrayCRC32 {
		return nil, ErrBadEntryCRC
	}

	entries := make([]PartitionEntry, h.NumberOfPartitionEntries)
	r := bytes.NewReader(buf)
	for i := range entries {
		if err := binary.Read(r, binary.LittleEndian, &entries[i]); err != nil {
			return nil, errors.Wrapf(err, "gpt: decode entry %d", i)
		}
	}
	return entries, nil
}

// WriteHeader recomputes h.HeaderCRC32 over h.HeaderSize bytes and
// writes it to h.CurrentLBA.
func WriteHeader(dev *blockdevice.Device, h Header) error {
	crc, err := ComputeHeaderCRC32(h)
	if err != nil {
		return err
	}
	h.HeaderCRC32 = crc

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return errors.Wrap(err, "gpt: encode header")
	}
	sector := make([]byte, dev.SectorSize())
	copy(sector, buf.Bytes())
	if _, err := dev.WriteLBA(h.CurrentLBA, sector); err != nil {
		return errors.Wrapf(err, "gpt: write header at lba %d", h.CurrentLBA)
	}
	return nil
}

// WriteEntries writes entries to h.PartitionEntryLBA. Callers must
// recompute h.PartitionEntryArrayCRC32 (via ComputeEntryArrayCRC32)
// and persist it via WriteHeader separately.
func WriteEntries(dev *blockdevice.Device, h Header, entries []PartitionEntry) error {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, entries); err != nil {
		return errors.Wrap(err, "gpt: encode entries")
	}
	raw := buf.Bytes()

	sectorSize := uint64(dev.SectorSize())
	sectorsNeeded := (uint64(len(raw)) + sectorSize - 1) / sectorSize
	padded := make([]byte, sectorsNeeded*sectorSize)
	copy(padded, raw)
	for i := uint64(0); i < sectorsNeeded; i++ {
		if _, err := dev.WriteLBA(h.PartitionEntryLBA+i, padded[i*sectorSize:(i+1)*sectorSize]); err != nil {
			return errors.Wrap(err, "gpt: write partition entry array")
		}
	}
	return nil
}
