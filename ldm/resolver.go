package ldm

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Resolve joins the five relations into a flat, ordered list of
// PartitionRange values for the disk identified by diskGUID: every
// Partition whose disk_id matches that disk's id contributes one
// range, in parse order.
func Resolve(rel *Relations, diskGUID uuid.UUID, logicalDiskStart uint64) ([]PartitionRange, error) {
	var diskID uint32
	found := false
	for _, d := range rel.Disks() {
		if d.GUID == diskGUID {
			diskID = d.ID
			found = true
			break
		}
	}
	if !found {
		return nil, ErrDiskNotFound
	}

	var ranges []PartitionRange
	for _, p := range rel.Partitions() {
		if p.DiskID != diskID {
			continue
		}

		comp, ok := rel.Component(p.ComponentID)
		if !ok {
			return nil, errors.Wrapf(ErrOrphanComponent, "partition %d -> component %d", p.ID, p.ComponentID)
		}
		vol, ok := rel.Volume(comp.VolumeID)
		if !ok {
			return nil, errors.Wrapf(ErrOrphanVolume, "component %d -> volume %d", comp.ID, comp.VolumeID)
		}

		ranges = append(ranges, PartitionRange{
			AbsoluteStart: logicalDiskStart + p.Start,
			Offset:        p.VolumeOffset,
			Size:          p.Size,
			PartType:      vol.PartType,
		})
	}

	return ranges, nil
}
