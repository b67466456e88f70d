package wire

import (
	"bytes"
	"testing"

	"github.com/atendeindustries/tstorage-clients"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Status: 0, Size: 0},
		{Status: int32(CommandGetAcq), Size: GetRequestAuxLen},
		{Status: -1, Size: 16},
	}
	for _, h := range cases {
		got, err := DecodeHeader(h.Encode())
		if err != nil {
			t.Fatalf("DecodeHeader: %v", err)
		}
		if got != h {
			t.Errorf("round trip %+v -> %+v", h, got)
		}
	}
}

func TestFullKeyRoundTrip(t *testing.T) {
	keys := []tstorage.Key{
		{},
		{Cid: 1, Mid: 2, Moid: 3, Cap: 4, Acq: 5},
		tstorage.KeyMin(),
		tstorage.KeyMax(),
		{Cid: 7, Mid: -100, Moid: -7, Cap: -1, Acq: -1},
	}
	for _, k := range keys {
		encoded := EncodeFullKey(k)
		if len(encoded) != FullKeySize {
			t.Fatalf("EncodeFullKey length = %d, want %d", len(encoded), FullKeySize)
		}
		// encode(decode(encode(k))) = encode(k)
		decoded, err := DecodeFullKey(encoded)
		if err != nil {
			t.Fatalf("DecodeFullKey: %v", err)
		}
		reencoded := EncodeFullKey(decoded)
		if !bytes.Equal(encoded, reencoded) {
			t.Errorf("encode(decode(encode(%+v))) != encode(%+v)", k, k)
		}
	}
}

func TestKeyNoCidRoundTrip(t *testing.T) {
	k := tstorage.Key{Cid: 9, Mid: 100, Moid: -5, Cap: 200, Acq: 300}
	encoded := EncodeKeyNoCid(k)
	if len(encoded) != KeyNoCidSize {
		t.Fatalf("len = %d, want %d", len(encoded), KeyNoCidSize)
	}
	decoded, err := DecodeKeyNoCid(encoded, k.Cid)
	if err != nil {
		t.Fatalf("DecodeKeyNoCid: %v", err)
	}
	if decoded != k {
		t.Errorf("round trip %+v -> %+v", k, decoded)
	}
}

func TestKeyNoCidAcqRoundTrip(t *testing.T) {
	k := tstorage.Key{Cid: 9, Mid: 100, Moid: -5, Cap: 200}
	encoded := EncodeKeyNoCidAcq(k)
	if len(encoded) != KeyNoCidAcqSize {
		t.Fatalf("len = %d, want %d", len(encoded), KeyNoCidAcqSize)
	}
	decoded, err := DecodeKeyNoCidAcq(encoded, k.Cid, 42)
	if err != nil {
		t.Fatalf("DecodeKeyNoCidAcq: %v", err)
	}
	want := k
	want.Acq = 42
	if decoded != want {
		t.Errorf("round trip %+v -> %+v, want %+v", k, decoded, want)
	}
}

func TestInt32Int64RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1 << 20, -(1 << 20)} {
		if got := DecodeInt32(EncodeInt32(v)); got != v {
			t.Errorf("int32 round trip %d -> %d", v, got)
		}
	}
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		if got := DecodeInt64(EncodeInt64(v)); got != v {
			t.Errorf("int64 round trip %d -> %d", v, got)
		}
	}
}

func TestDecodeHeaderRejectsWrongLength(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, 4)); err == nil {
		t.Fatalf("expected error for short header")
	}
}
