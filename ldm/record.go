package ldm

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// decodeVolume parses an assembled volume payload (revision 5 only).
func decodeVolume(c *cursor, revision, flags uint8) (Volume, error) {
	var v Volume

	if revision != 5 {
		return v, errors.Wrapf(ErrUnsupportedRevision, "volume revision %d", revision)
	}

	id, err := c.varintU32()
	if err != nil {
		return v, err
	}
	name, err := c.varstring()
	if err != nil {
		return v, err
	}
	if err := c.skip(); err != nil { // volume_type1
		return v, err
	}
	if err := c.skip(); err != nil { // unknown
		return v, err
	}
	if _, err := c.take(14); err != nil { // volume_state
		return v, err
	}

	typ, err := c.byte()
	if err != nil {
		return v, err
	}
	if typ != VolumeTypeGen && typ != VolumeTypeRAID5 {
		return v, errors.Wrapf(ErrUnsupportedVolume, "type %#x", typ)
	}
	if typ == VolumeTypeRAID5 {
		return v, ErrRAID5Unsupported
	}

	if _, err := c.byte(); err != nil { // unknown
		return v, err
	}
	if _, err := c.byte(); err != nil { // volume_number
		return v, err
	}
	if _, err := c.take(3); err != nil { // zeros
		return v, err
	}

	innerFlags, err := c.byte()
	if err != nil {
		return v, err
	}

	numOfChildren, err := c.varintU32()
	if err != nil {
		return v, err
	}
	if _, err := c.take(8); err != nil { // log_commit_id
		return v, err
	}
	if _, err := c.take(8); err != nil { // unknown
		return v, err
	}

	size, err := c.varintU64()
	if err != nil {
		return v, err
	}
	if _, err := c.take(4); err != nil { // zeros
		return v, err
	}

	partType, err := c.byte()
	if err != nil {
		return v, err
	}

	rawGUID, err := c.take(16)
	if err != nil {
		return v, err
	}
	guid, err := uuid.FromBytes(rawGUID)
	if err != nil {
		return v, errors.Wrap(err, "ldm: decode volume guid")
	}

	v = Volume{
		ID:         id,
		Name:       name,
		Type:       typ,
		Flags:      innerFlags,
		NumOfComps: numOfChildren,
		Size:       size,
		PartType:   partType,
		GUID:       guid,
	}

	switch {
	case flags&VolumeFlagID1 != 0:
		v.ID1, err = c.varstring()
	case flags&VolumeFlagID2 != 0:
		v.ID2, err = c.varstring()
	case flags&VolumeFlagSize != 0:
		v.Size1, err = c.varintU64()
	case flags&VolumeFlagDriveHint != 0:
		v.DriveHint, err = c.varstring()
	}
	if err != nil {
		return Volume{}, err
	}

	return v, nil
}

// decodeComponent parses an assembled component payload (revision 3 only).
func decodeComponent(c *cursor, revision, flags uint8) (Component, error) {
	var comp Component

	if revision != 3 {
		return comp, errors.Wrapf(ErrUnsupportedRevision, "component revision %d", revision)
	}

	id, err := c.varintU32()
	if err != nil {
		return comp, err
	}
	name, err := c.varstring()
	if err != nil {
		return comp, err
	}
	if err := c.skip(); err != nil { // state
		return comp, err
	}

	typ, err := c.byte()
	if err != nil {
		return comp, err
	}
	if typ != ComponentTypeSpanned {
		return comp, errors.Wrapf(ErrUnsupportedComponent, "type %#x", typ)
	}

	if _, err := c.take(4); err != nil { // zeros
		return comp, err
	}

	numOfChildren, err := c.varintU32()
	if err != nil {
		return comp, err
	}
	if _, err := c.take(8); err != nil { // commit_id
		return comp, err
	}
	if _, err := c.take(8); err != nil { // zeros1
		return comp, err
	}

	parentID, err := c.varintU32()
	if err != nil {
		return comp, err
	}
	if _, err := c.byte(); err != nil { // zeros2
		return comp, err
	}

	comp = Component{
		ID:         id,
		Name:       name,
		Type:       typ,
		NumOfParts: numOfChildren,
		VolumeID:   parentID,
	}

	if flags&ComponentFlagEnable != 0 {
		comp.ChunkSize, err = c.varintU64()
		if err != nil {
			return Component{}, err
		}
		comp.Columns, err = c.varintU32()
		if err != nil {
			return Component{}, err
		}
	}

	return comp, nil
}

// decodePartition parses an assembled partition payload (revision 3 only).
func decodePartition(c *cursor, revision, flags uint8) (Partition, error) {
	var p Partition

	if revision != 3 {
		return p, errors.Wrapf(ErrUnsupportedRevision, "partition revision %d", revision)
	}

	id, err := c.varintU32()
	if err != nil {
		return p, err
	}
	name, err := c.varstring()
	if err != nil {
		return p, err
	}
	if _, err := c.take(4); err != nil { // zeros
		return p, err
	}
	if _, err := c.take(8); err != nil { // commit_id
		return p, err
	}

	start, err := c.u64be()
	if err != nil {
		return p, err
	}
	offset, err := c.u64be()
	if err != nil {
		return p, err
	}
	size, err := c.varintU64()
	if err != nil {
		return p, err
	}
	parentID, err := c.varintU32()
	if err != nil {
		return p, err
	}
	diskID, err := c.varintU32()
	if err != nil {
		return p, err
	}

	p = Partition{
		ID:           id,
		Name:         name,
		Start:        start,
		VolumeOffset: offset,
		Size:         size,
		ComponentID:  parentID,
		DiskID:       diskID,
	}

	if flags&PartitionFlagIndex != 0 {
		p.Index, err = c.varintU32()
		if err != nil {
			return Partition{}, err
		}
	}

	return p, nil
}

// decodeDisk parses an assembled disk payload. Revision 3 carries the
// disk guid as canonical UUID text; revision 4 carries 16 raw bytes.
func decodeDisk(c *cursor, revision uint8) (Disk, error) {
	id, err := c.varintU32()
	if err != nil {
		return Disk{}, err
	}
	name, err := c.varstring()
	if err != nil {
		return Disk{}, err
	}

	var g uuid.UUID
	switch revision {
	case 3:
		idStr, err := c.varstring()
		if err != nil {
			return Disk{}, err
		}
		g, err = uuid.Parse(idStr)
		if err != nil {
			return Disk{}, errors.Wrapf(ErrInvalidDiskGUID, "disk %d: %q", id, idStr)
		}
	case 4:
		raw, err := c.take(16)
		if err != nil {
			return Disk{}, err
		}
		g, err = uuid.FromBytes(raw)
		if err != nil {
			return Disk{}, errors.Wrap(err, "ldm: decode disk guid")
		}
	default:
		return Disk{}, errors.Wrapf(ErrUnsupportedRevision, "disk revision %d", revision)
	}

	return Disk{ID: id, Name: name, GUID: g}, nil
}

// decodeDiskGroup parses an assembled disk-group payload (revision 3 or 4).
func decodeDiskGroup(c *cursor, revision uint8) (DiskGroup, error) {
	if revision != 3 && revision != 4 {
		return DiskGroup{}, errors.Wrapf(ErrUnsupportedRevision, "disk group revision %d", revision)
	}
	id, err := c.varintU32()
	if err != nil {
		return DiskGroup{}, err
	}
	name, err := c.varstring()
	if err != nil {
		return DiskGroup{}, err
	}
	return DiskGroup{ID: id, Name: name}, nil
}
