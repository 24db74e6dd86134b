package ldm

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func buildTestRelations() (*Relations, uuid.UUID) {
	diskGUID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	rel := newRelations()
	rel.addDisk(Disk{ID: 1, Name: "Disk0", GUID: diskGUID})
	rel.addVolume(Volume{ID: 100, Type: VolumeTypeGen, PartType: 0x07})
	rel.addComponent(Component{ID: 200, Type: ComponentTypeSpanned, VolumeID: 100})
	rel.addPartition(Partition{ID: 300, Start: 0x10, VolumeOffset: 0, Size: 0x20, ComponentID: 200, DiskID: 1})
	return rel, diskGUID
}

func Test_Resolve_HappyPath(t *testing.T) {
	rel, diskGUID := buildTestRelations()
	ranges, err := Resolve(rel, diskGUID, 0x1000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(ranges))
	}
	want := PartitionRange{AbsoluteStart: 0x1010, Offset: 0, Size: 0x20, PartType: 0x07}
	if ranges[0] != want {
		t.Fatalf("got %+v, want %+v", ranges[0], want)
	}
}

func Test_Resolve_DiskNotFound(t *testing.T) {
	rel, _ := buildTestRelations()
	other := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	if _, err := Resolve(rel, other, 0); err != ErrDiskNotFound {
		t.Fatalf("expected ErrDiskNotFound, got %v", err)
	}
}

func Test_Resolve_OrphanComponent(t *testing.T) {
	rel, diskGUID := buildTestRelations()
	rel.addPartition(Partition{ID: 301, ComponentID: 999, DiskID: 1})
	if _, err := Resolve(rel, diskGUID, 0); errors.Cause(err) != ErrOrphanComponent {
		t.Fatalf("expected ErrOrphanComponent, got %v", err)
	}
}

func Test_Resolve_OrphanVolume(t *testing.T) {
	rel, diskGUID := buildTestRelations()
	rel.addComponent(Component{ID: 201, Type: ComponentTypeSpanned, VolumeID: 999})
	rel.addPartition(Partition{ID: 302, ComponentID: 201, DiskID: 1})
	if _, err := Resolve(rel, diskGUID, 0); errors.Cause(err) != ErrOrphanVolume {
		t.Fatalf("expected ErrOrphanVolume, got %v", err)
	}
}

func Test_Resolve_IgnoresOtherDisks(t *testing.T) {
	rel, diskGUID := buildTestRelations()
	rel.addDisk(Disk{ID: 2, GUID: uuid.New()})
	rel.addPartition(Partition{ID: 303, ComponentID: 200, DiskID: 2})
	ranges, err := Resolve(rel, diskGUID, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected the foreign-disk partition to be filtered out, got %d ranges", len(ranges))
	}
}
