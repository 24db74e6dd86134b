// Package convert drives the end-to-end conversion: classify the
// target device, parse its LDM metadata, and rewrite the surrounding
// GPT or MBR with basic-data entries at the resolved ranges.
package convert

import (
	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dynamic2basic/dynamic2basic/blockdevice"
	"github.com/dynamic2basic/dynamic2basic/gpt"
	"github.com/dynamic2basic/dynamic2basic/ldm"
	"github.com/dynamic2basic/dynamic2basic/mbr"
)

// Layout identifies which partition-table scheme a disk uses, read
// from the legacy MBR's first partition's os_type byte.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutGPT
	LayoutMBR
)

var (
	ErrNotLDMDisk        = errors.New("convert: device is not a recognized LDM disk (mbr partition[0].os_type matches neither GPT-protective nor LDM-MBR)")
	ErrNoLDMEntries      = errors.New("convert: no LDM-metadata GPT entry found")
	ErrHeaderMismatch    = errors.New("convert: primary and secondary GPT headers disagree")
	ErrTooManyPartitions = errors.New("convert: resolved partition count exceeds 4, MBR cannot represent it")
)

// Classify reads sector 0 and reports which rewrite path applies.
func Classify(dev *blockdevice.Device) (Layout, error) {
	t, err := mbr.Read(dev)
	if err != nil {
		return LayoutUnknown, err
	}
	switch t.Partition[0].OSType {
	case mbr.PartitionTypeEFIProtective:
		return LayoutGPT, nil
	case mbr.PartitionTypeWindowsLDM:
		return LayoutMBR, nil
	default:
		return LayoutUnknown, ErrNotLDMDisk
	}
}

// ScanGPT locates every LDM-metadata entry in the primary GPT array,
// parses each one's LDM database, merges the resulting relations (the
// source keeps all parsed VBLK records on one process-wide pool), and
// resolves the merged relations against whichever PRIVHEAD was read
// last, matching the upstream tool's behavior of reusing a single
// PRIVHEAD variable across scanned entries.
func ScanGPT(dev *blockdevice.Device) ([]ldm.PartitionRange, error) {
	header, err := gpt.ReadMainHeader(dev)
	if err != nil {
		return nil, err
	}
	entries, err := gpt.ReadEntries(dev, header)
	if err != nil {
		return nil, err
	}

	merged := ldm.NewRelations()
	var head ldm.PrivHead
	found := false

	for _, e := range entries {
		if e.PartitionTypeGUID != gpt.PartitionLDMMetadataGUID {
			continue
		}
		h, rel, err := ldm.Load(dev, e.LastLBA)
		if err != nil {
			return nil, errors.Wrapf(err, "convert: ldm entry at lba %d", e.LastLBA)
		}
		merged.Merge(rel)
		head = h
		found = true
	}
	if !found {
		return nil, ErrNoLDMEntries
	}

	return ldm.Resolve(merged, head.DiskGUID, head.LogicalDiskStart)
}

// ScanMBR parses the LDM database at the fixed PRIVHEAD sector used on
// MBR-LDM disks and resolves it.
func ScanMBR(dev *blockdevice.Device) ([]ldm.PartitionRange, error) {
	head, rel, err := ldm.Load(dev, ldm.MBRPrivHeadSector)
	if err != nil {
		return nil, err
	}
	return ldm.Resolve(rel, head.DiskGUID, head.LogicalDiskStart)
}

// RewriteGPT replaces every LDM-typed entry in the on-disk primary and
// secondary GPT with basic-data entries at the resolved ranges, and
// writes secondary before primary so an interrupted run leaves the
// primary header/array intact.
func RewriteGPT(dev *blockdevice.Device, ranges []ldm.PartitionRange) error {
	primary, err := gpt.ReadMainHeader(dev)
	if err != nil {
		return err
	}
	secondary, err := gpt.ReadSecondHeader(dev)
	if err != nil {
		return err
	}
	if primary.PartitionEntryArrayCRC32 != secondary.PartitionEntryArrayCRC32 ||
		primary.AlternateLBA != secondary.CurrentLBA ||
		primary.CurrentLBA != secondary.AlternateLBA {
		return ErrHeaderMismatch
	}

	entries, err := gpt.ReadEntries(dev, primary)
	if err != nil {
		return err
	}

	for i := range entries {
		if entries[i].PartitionTypeGUID == gpt.PartitionLDMMetadataGUID ||
			entries[i].PartitionTypeGUID == gpt.PartitionLDMDataGUID {
			entries[i] = gpt.PartitionEntry{}
		}
	}

	for _, rng := range ranges {
		slot := firstZeroEntry(entries)
		if slot < 0 {
			return errors.New("convert: no free gpt entry slot for resolved partition")
		}
		g, err := guid.NewV4()
		if err != nil {
			return errors.Wrap(err, "convert: generate partition guid")
		}
		entries[slot] = gpt.PartitionEntry{
			PartitionTypeGUID:   gpt.PartitionBasicDataGUID,
			UniquePartitionGUID: g,
			FirstLBA:            rng.AbsoluteStart,
			LastLBA:             rng.AbsoluteStart + rng.Size - 1,
		}
	}

	crc, err := gpt.ComputeEntryArrayCRC32(entries)
	if err != nil {
		return err
	}
	secondary.PartitionEntryArrayCRC32 = crc
	primary.PartitionEntryArrayCRC32 = crc

	logrus.WithFields(logrus.Fields{
		"ranges": len(ranges),
	}).Info("convert: writing secondary copy before primary")

	if err := gpt.WriteEntries(dev, secondary, entries); err != nil {
		return errors.Wrap(err, "convert: write secondary entries")
	}
	if err := gpt.WriteHeader(dev, secondary); err != nil {
		return errors.Wrap(err, "convert: write secondary header")
	}
	if err := gpt.WriteEntries(dev, primary, entries); err != nil {
		return errors.Wrap(err, "convert: write primary entries")
	}
	if err := gpt.WriteHeader(dev, primary); err != nil {
		return errors.Wrap(err, "convert: write primary header")
	}
	return nil
}

func firstZeroEntry(entries []gpt.PartitionEntry) int {
	for i := range entries {
		if entries[i].IsZero() {
			return i
		}
	}
	return -1
}

// RewriteMBR fills up to 4 legacy MBR partition records with the
// resolved ranges and writes sector 0.
func RewriteMBR(dev *blockdevice.Device, ranges []ldm.PartitionRange) error {
	if len(ranges) > mbr.MaxPartitions {
		return ErrTooManyPartitions
	}

	t, err := mbr.Read(dev)
	if err != nil {
		return err
	}

	for i, rng := range ranges {
		cs, hs, ss := mbr.CHSFromLBA(rng.AbsoluteStart)
		ce, he, se := mbr.CHSFromLBA(rng.AbsoluteStart + rng.Size)
		t.Partition[i] = mbr.Partition{
			BootIndicator: mbr.BootIndicatorNonBootable,
			StartHead:     hs,
			StartSector:   ss,
			StartTrack:    cs,
			OSType:        rng.PartType,
			EndHead:       he,
			EndSector:     se,
			EndTrack:      ce,
			StartingLBA:   uint32(rng.AbsoluteStart),
			SizeInLBA:     uint32(rng.Size),
		}
	}
	for i := len(ranges); i < mbr.MaxPartitions; i++ {
		t.Partition[i] = mbr.Partition{}
	}

	return mbr.Write(dev, t)
}
