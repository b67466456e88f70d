package mockserver

import (
	"testing"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

func encodeGroupRecord(key tstorage.Key, value []byte, withAcq bool) []byte {
	var keyRest []byte
	if withAcq {
		keyRest = wire.EncodeKeyNoCid(key)
	} else {
		keyRest = wire.EncodeKeyNoCidAcq(key)
	}
	size := int32(len(keyRest) + len(value))
	out := append([]byte{}, wire.EncodeInt32(size)...)
	out = append(out, keyRest...)
	out = append(out, value...)
	return out
}

func TestDecodeGroupRoundTrip(t *testing.T) {
	key := tstorage.Key{Cid: 1, Mid: 2, Moid: 3, Cap: 4, Acq: 5}
	payload := encodeGroupRecord(key, []byte("hello"), true)

	records, err := decodeGroup(payload, key.Cid, true)
	if err != nil {
		t.Fatalf("decodeGroup: %v", err)
	}
	if len(records) != 1 || string(records[0].Value) != "hello" {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Key != key {
		t.Fatalf("key = %+v, want %+v", records[0].Key, key)
	}
}

func TestDecodeGroupRejectsRecordBelowMinimumSize(t *testing.T) {
	// A record_size smaller than the key-rest layout can never hold a
	// valid key.
	payload := append([]byte{}, wire.EncodeInt32(4)...)
	payload = append(payload, make([]byte, 4)...)

	if _, err := decodeGroup(payload, 1, true); err == nil {
		t.Fatalf("expected an error for a record shorter than the key-rest layout")
	}
}

func TestDecodeGroupRejectsRecordAboveMaxPayload(t *testing.T) {
	oversized := int32(wire.KeyNoCidSize + maxPayload + 1)
	payload := wire.EncodeInt32(oversized)

	if _, err := decodeGroup(payload, 1, true); err == nil {
		t.Fatalf("expected an error for a record announcing a size over the max payload bound")
	}
}

func TestDecodeGroupRejectsTruncatedPayload(t *testing.T) {
	payload := wire.EncodeInt32(100) // announces more bytes than follow
	if _, err := decodeGroup(payload, 1, true); err == nil {
		t.Fatalf("expected an error when the announced size exceeds the remaining payload")
	}
}
