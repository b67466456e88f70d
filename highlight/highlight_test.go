package highlight

import (
	"strings"
	"testing"
)

func TestHexEmptyInput(t *testing.T) {
	if got := Hex(nil); got == "" {
		t.Fatalf("Hex(nil) should not be empty")
	}
}

func TestHexLineCount(t *testing.T) {
	cases := []struct {
		n     int
		lines int
	}{
		{1, 1},
		{16, 1},
		{17, 2},
		{32, 2},
		{33, 3},
	}
	for _, c := range cases {
		data := make([]byte, c.n)
		got := Hex(data)
		lines := strings.Count(got, "\n") + 1
		if lines != c.lines {
			t.Errorf("Hex(%d bytes) produced %d lines, want %d", c.n, lines, c.lines)
		}
	}
}

func TestHexCoversEveryByte(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	got := Hex(data)
	if !strings.Contains(got, "74 68 65") { // "the" in hex
		t.Fatalf("Hex output missing expected leading bytes: %q", got)
	}
	// Each half-line of 8 bytes appears as one contiguous run of hex.
	for off := 0; off < len(data); off += hexBytesPerLine / 2 {
		end := min(off+hexBytesPerLine/2, len(data))
		var want strings.Builder
		for _, b := range data[off:end] {
			want.WriteString(hexByte(b))
		}
		if !strings.Contains(got, want.String()) {
			t.Fatalf("Hex output missing bytes %d..%d (%q): %q", off, end, want.String(), got)
		}
	}
}

func TestPreviewNeverPanicsOnArbitraryBytes(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0xff, 0xfe, 0x00, 0x01},
		[]byte(`{"a": 1, "b": [1,2,3]}`),
		[]byte("plain ascii text"),
		[]byte{0x80, 0x81, 0x82}, // invalid UTF-8
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Preview panicked on %v: %v", in, r)
				}
			}()
			_ = Preview(in)
		}()
	}
}

func TestPreviewEmpty(t *testing.T) {
	if got := Preview(nil); got == "" {
		t.Fatalf("Preview(nil) should not be empty")
	}
}

func TestPreviewDetectsJSON(t *testing.T) {
	got := Preview([]byte(`{"key": "value"}`))
	if !strings.Contains(got, "key") {
		t.Fatalf("Preview of JSON lost the original content: %q", got)
	}
}

func TestPreviewFallsBackToHexForBinary(t *testing.T) {
	got := Preview([]byte{0x00, 0x01, 0x02, 0xff})
	if !strings.Contains(got, "hex:") {
		t.Fatalf("Preview of binary data should fall back to a hex sample, got %q", got)
	}
}
