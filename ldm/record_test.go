package ldm

import "testing"

func buildVolumeBody(t *testing.T, volType uint8, trailingFlag uint8, trailing []byte) []byte {
	t.Helper()
	var body []byte
	body = append(body, varint32(55)...)
	body = append(body, varstr("V")...)
	body = append(body, varstr("")...) // volume_type1
	body = append(body, varstr("")...) // unknown
	body = append(body, zeros(14)...)
	body = append(body, volType)
	body = append(body, 0, 0) // unknown, volume_number
	body = append(body, zeros(3)...)
	body = append(body, 0) // inner flags
	body = append(body, varint32(0)...)
	body = append(body, zeros(8)...)
	body = append(body, zeros(8)...)
	body = append(body, varint64(0x2000)...)
	body = append(body, zeros(4)...)
	body = append(body, 0x07)
	body = append(body, make([]byte, 16)...)
	body = append(body, trailing...)
	_ = trailingFlag
	return body
}

func Test_DecodeVolume_RejectsWrongRevision(t *testing.T) {
	body := buildVolumeBody(t, VolumeTypeGen, 0, nil)
	if _, err := decodeVolume(newCursor(body), 4, 0); err == nil {
		t.Fatalf("expected error for revision != 5")
	}
}

func Test_DecodeVolume_RejectsRAID5(t *testing.T) {
	body := buildVolumeBody(t, VolumeTypeRAID5, 0, nil)
	if _, err := decodeVolume(newCursor(body), 5, 0); err != ErrRAID5Unsupported {
		t.Fatalf("expected ErrRAID5Unsupported, got %v", err)
	}
}

func Test_DecodeVolume_RejectsUnknownType(t *testing.T) {
	body := buildVolumeBody(t, 0x09, 0, nil)
	if _, err := decodeVolume(newCursor(body), 5, 0); err == nil {
		t.Fatalf("expected error for unsupported volume type")
	}
}

func Test_DecodeVolume_OptionalFieldOrder(t *testing.T) {
	// Both VolumeFlagID1 and VolumeFlagID2 set: only the first
	// (VolumeFlagID1) branch should be decoded.
	trailing := varstr("the-id1")
	body := buildVolumeBody(t, VolumeTypeGen, VolumeFlagID1, trailing)
	v, err := decodeVolume(newCursor(body), 5, VolumeFlagID1|VolumeFlagID2)
	if err != nil {
		t.Fatalf("decodeVolume: %v", err)
	}
	if v.ID1 != "the-id1" {
		t.Fatalf("expected id1 decoded, got %+v", v)
	}
	if v.ID2 != "" {
		t.Fatalf("expected id2 left empty when id1 bit also set, got %q", v.ID2)
	}
}

func Test_DecodeComponent_RejectsNonSpanned(t *testing.T) {
	var body []byte
	body = append(body, varint32(1)...)
	body = append(body, varstr("C")...)
	body = append(body, varstr("")...)
	body = append(body, ComponentTypeStriped)
	body = append(body, zeros(4)...)
	body = append(body, varint32(0)...)
	body = append(body, zeros(8)...)
	body = append(body, zeros(8)...)
	body = append(body, varint32(7)...)
	body = append(body, 0)

	if _, err := decodeComponent(newCursor(body), 3, 0); err == nil {
		t.Fatalf("expected error for striped component type")
	}
}

func Test_DecodeComponent_ChunkSizeGatedByFlag(t *testing.T) {
	var body []byte
	body = append(body, varint32(1)...)
	body = append(body, varstr("C")...)
	body = append(body, varstr("")...)
	body = append(body, ComponentTypeSpanned)
	body = append(body, zeros(4)...)
	body = append(body, varint32(0)...)
	body = append(body, zeros(8)...)
	body = append(body, zeros(8)...)
	body = append(body, varint32(7)...)
	body = append(body, 0)
	body = append(body, varint64(0x4000)...)
	body = append(body, varint32(4)...)

	c, err := decodeComponent(newCursor(body), 3, ComponentFlagEnable)
	if err != nil {
		t.Fatalf("decodeComponent: %v", err)
	}
	if c.ChunkSize != 0x4000 || c.Columns != 4 {
		t.Fatalf("expected chunk_size/columns decoded, got %+v", c)
	}
}

func Test_DecodeDisk_RejectsBadRevision(t *testing.T) {
	var body []byte
	body = append(body, varint32(1)...)
	body = append(body, varstr("D")...)
	if _, err := decodeDisk(newCursor(body), 7); err == nil {
		t.Fatalf("expected error for unsupported disk revision")
	}
}

func Test_DecodeDisk_Revision3TextGUID(t *testing.T) {
	var body []byte
	body = append(body, varint32(1)...)
	body = append(body, varstr("D")...)
	body = append(body, varstr("11111111-2222-3333-4444-555555555555")...)

	d, err := decodeDisk(newCursor(body), 3)
	if err != nil {
		t.Fatalf("decodeDisk: %v", err)
	}
	if d.GUID.String() != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected guid: %v", d.GUID)
	}
}
