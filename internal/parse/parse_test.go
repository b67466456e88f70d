package parse

import (
	"testing"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/recvbuf"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

func encodeFlatRecord(key tstorage.Key, value []byte) []byte {
	full := wire.EncodeFullKey(key)
	size := int32(len(full) + len(value))
	out := append([]byte{}, wire.EncodeInt32(size)...)
	out = append(out, full...)
	out = append(out, value...)
	return out
}

func TestParseRecordsFinishedOnSentinel(t *testing.T) {
	buf := recvbuf.New(128)
	buf.Feed(encodeFlatRecord(tstorage.Key{Cid: 1, Mid: 2}, []byte("hi")))
	buf.Feed(wire.EncodeInt32(0))

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 0)

	if verdict != Finished {
		t.Fatalf("verdict = %v, want Finished", verdict)
	}
	if len(sink) != 1 || string(sink[0].Value) != "hi" {
		t.Fatalf("sink = %+v", sink)
	}
}

func TestParseRecordsNeedsMoreBytesOnPartialRecord(t *testing.T) {
	buf := recvbuf.New(128)
	full := encodeFlatRecord(tstorage.Key{Cid: 1}, []byte("payload"))
	buf.Feed(full[:len(full)-3])

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 0)

	if verdict != NeedsMoreBytes {
		t.Fatalf("verdict = %v, want NeedsMoreBytes", verdict)
	}
	if len(sink) != 0 {
		t.Fatalf("sink should stay empty on a partial record, got %+v", sink)
	}
}

func TestParseRecordsNeedsMoreBytesOnPartialSizePrefix(t *testing.T) {
	buf := recvbuf.New(128)
	buf.Feed([]byte{1, 2})

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 0)
	if verdict != NeedsMoreBytes {
		t.Fatalf("verdict = %v, want NeedsMoreBytes", verdict)
	}
}

func TestParseRecordsUnparseableOnInvalidKey(t *testing.T) {
	buf := recvbuf.New(128)
	buf.Feed(encodeFlatRecord(tstorage.Key{Cid: -1}, nil))

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 0)
	if verdict != Unparseable {
		t.Fatalf("verdict = %v, want Unparseable", verdict)
	}
}

func TestParseRecordsRecordTooBig(t *testing.T) {
	buf := recvbuf.New(256)
	buf.Feed(encodeFlatRecord(tstorage.Key{Cid: 1}, []byte("0123456789")))

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 8)
	if verdict != RecordTooBig {
		t.Fatalf("verdict = %v, want RecordTooBig", verdict)
	}
}

func TestParseRecordsMultipleRecordsThenMoreBytesNeeded(t *testing.T) {
	buf := recvbuf.New(256)
	buf.Feed(encodeFlatRecord(tstorage.Key{Cid: 1, Mid: 1}, []byte("a")))
	buf.Feed(encodeFlatRecord(tstorage.Key{Cid: 1, Mid: 2}, []byte("b")))

	var sink []tstorage.Record[[]byte]
	verdict := ParseRecords(buf, &sink, tstorage.BytesPayload{}, 0)
	if verdict != NeedsMoreBytes {
		t.Fatalf("verdict = %v, want NeedsMoreBytes", verdict)
	}
	if len(sink) != 2 {
		t.Fatalf("expected both complete records parsed before running dry, got %d", len(sink))
	}
}

func TestHandleResponseNeedsMoreBytesOnPartialHeader(t *testing.T) {
	buf := recvbuf.New(64)
	buf.Feed(make([]byte, 4))

	_, ok, err := HandleResponse(buf, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false with a partial header")
	}
}

func TestHandleResponseNeedsMoreBytesOnPartialAux(t *testing.T) {
	buf := recvbuf.New(64)
	hdr := wire.Header{Status: 0, Size: 16}
	buf.Feed(hdr.Encode())
	buf.Feed(make([]byte, 4))

	_, ok, err := HandleResponse(buf, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false with a partial aux trailer")
	}
}

func TestHandleResponseSkipsAuxOnErrorStatus(t *testing.T) {
	buf := recvbuf.New(64)
	hdr := wire.Header{Status: -1, Size: 0}
	buf.Feed(hdr.Encode())

	resp, ok, err := HandleResponse(buf, 16)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want ok=true err=nil", ok, err)
	}
	if len(resp.Aux) != 0 {
		t.Fatalf("expected no aux bytes read on error status, got %d", len(resp.Aux))
	}
}

func TestHandleResponseReadsFixedAuxOnOKStatus(t *testing.T) {
	buf := recvbuf.New(64)
	hdr := wire.Header{Status: 0, Size: 16}
	buf.Feed(hdr.Encode())
	buf.Feed(append(wire.EncodeInt64(10), wire.EncodeInt64(20)...))

	resp, ok, err := HandleResponse(buf, 16)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if len(resp.Aux) != 16 {
		t.Fatalf("len(Aux) = %d, want 16", len(resp.Aux))
	}
	if wire.DecodeInt64(resp.Aux[:8]) != 10 || wire.DecodeInt64(resp.Aux[8:]) != 20 {
		t.Fatalf("aux decode mismatch: %+v", resp.Aux)
	}
}
