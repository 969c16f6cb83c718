package utils

import "testing"

func TestAlignTo(t *testing.T) {
	tests := []struct {
		val, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
		{5, 0, 5},
		{5, 1, 5},
	}
	for _, tt := range tests {
		if got := AlignTo(tt.val, tt.align); got != tt.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tt.val, tt.align, got, tt.want)
		}
	}
}

func TestRemovePrefix(t *testing.T) {
	if s, ok := RemovePrefix("-lfoo", "-l"); !ok || s != "foo" {
		t.Errorf("RemovePrefix(-lfoo, -l) = %q, %v", s, ok)
	}
	if s, ok := RemovePrefix("bar.o", "-l"); ok || s != "bar.o" {
		t.Errorf("RemovePrefix(bar.o, -l) = %q, %v", s, ok)
	}
	if _, ok := RemovePrefix("-l", "-l"); !ok {
		t.Error("RemovePrefix(-l, -l) should match")
	}
}

func TestAddDashes(t *testing.T) {
	got := AddDashes("o")
	if len(got) != 1 || got[0] != "-o" {
		t.Errorf("AddDashes(o) = %v", got)
	}
	got = AddDashes("entry")
	if len(got) != 2 || got[0] != "-entry" || got[1] != "--entry" {
		t.Errorf("AddDashes(entry) = %v", got)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	type pair struct {
		A uint32
		B uint64
	}
	buf := make([]byte, 12)
	Write[pair](buf, pair{A: 0xdeadbeef, B: 0x0123456789abcdef})

	var got pair
	Read[pair](buf, &got)
	if got.A != 0xdeadbeef || got.B != 0x0123456789abcdef {
		t.Errorf("round trip = %+v", got)
	}

	// Little-endian on the wire.
	if buf[0] != 0xef || buf[1] != 0xbe {
		t.Errorf("unexpected byte order: % x", buf[:4])
	}
}

func TestReadSlice(t *testing.T) {
	buf := make([]byte, 8)
	Write[uint32](buf, 7)
	Write[uint32](buf[4:], 9)

	got := ReadSlice[uint32](buf, 4)
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Errorf("ReadSlice = %v", got)
	}
}

func TestAllZeros(t *testing.T) {
	if !AllZeros([]byte{0, 0, 0}) || !AllZeros(nil) {
		t.Error("AllZeros false negative")
	}
	if AllZeros([]byte{0, 1, 0}) {
		t.Error("AllZeros false positive")
	}
}
