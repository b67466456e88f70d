package batch

import (
	"testing"

	"github.com/atendeindustries/tstorage-clients"
)

func rec(cid int32, mid int64, value string) tstorage.Record[[]byte] {
	return tstorage.Record[[]byte]{Key: tstorage.Key{Cid: cid, Mid: mid}, Value: []byte(value)}
}

func TestSerializeGroupsByCidPreservingOrder(t *testing.T) {
	records := []tstorage.Record[[]byte]{
		rec(1, 1, "a"),
		rec(0, 1, "b"),
		rec(1, 2, "c"),
		rec(0, 2, "d"),
	}
	frames := Serialize(records, tstorage.BytesPayload{}, Options{WithAcq: true})

	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2 (one per cid)", len(frames))
	}
	if frames[0].Cid != 1 {
		t.Errorf("first frame cid = %d, want 1 (first cid seen)", frames[0].Cid)
	}
	if frames[1].Cid != 0 {
		t.Errorf("second frame cid = %d, want 0", frames[1].Cid)
	}
}

func TestSerializeSizeBounded(t *testing.T) {
	var records []tstorage.Record[[]byte]
	for i := 0; i < 5; i++ {
		records = append(records, rec(0, int64(i), "0123456789"))
	}
	// Each record encodes to 4 + 28 + 10 = 42 bytes with acq. Force a
	// split after roughly one record per frame.
	frames := Serialize(records, tstorage.BytesPayload{}, Options{WithAcq: true, MaxBatchSize: 50})
	if len(frames) < 2 {
		t.Fatalf("expected multiple frames under a tight MaxBatchSize, got %d", len(frames))
	}
	for _, f := range frames {
		if len(f.Payload) > 50 && len(f.Payload) > 42 {
			t.Errorf("frame payload length %d exceeds MaxBatchSize by more than one record", len(f.Payload))
		}
	}
}

func TestSerializeAlwaysEmitsAtLeastOneRecordRegardlessOfMaxBatchSize(t *testing.T) {
	records := []tstorage.Record[[]byte]{rec(0, 1, "this record alone exceeds the tiny limit")}
	frames := Serialize(records, tstorage.BytesPayload{}, Options{WithAcq: true, MaxBatchSize: 1})
	if len(frames) != 1 || len(frames[0].Payload) == 0 {
		t.Fatalf("expected one non-empty frame even under MaxBatchSize=1, got %+v", frames)
	}
}

func TestSerializeGroupsCompletelyBeforeStoppingAtAnInvalidKey(t *testing.T) {
	// A(cid0), D(invalid), B(cid1), C(cid0), E(cid1): grouping happens
	// over the whole input first, so the cid0 group still picks up C
	// even though it appears after the invalid record D in the input.
	a := rec(0, 1, "A")
	d := tstorage.Record[[]byte]{Key: tstorage.Key{Cid: -1}, Value: []byte("D")}
	b := rec(1, 1, "B")
	c := rec(0, 2, "C")
	e := rec(1, 2, "E")

	frames := Serialize([]tstorage.Record[[]byte]{a, d, b, c, e}, tstorage.BytesPayload{}, Options{WithAcq: true})

	var cid0 *Frame
	for i := range frames {
		if frames[i].Cid == 0 {
			cid0 = &frames[i]
		}
	}
	if cid0 == nil {
		t.Fatalf("expected a cid=0 frame, got %+v", frames)
	}
	wantPayload := append(encodeRecord(a, tstorage.BytesPayload{}, true), encodeRecord(c, tstorage.BytesPayload{}, true)...)
	if string(cid0.Payload) != string(wantPayload) {
		t.Fatalf("cid=0 frame should contain both A and C, got payload %q", cid0.Payload)
	}
}

func TestSerializeSkipsInvalidKeyWhenRequested(t *testing.T) {
	records := []tstorage.Record[[]byte]{
		rec(0, 1, "ok"),
		{Key: tstorage.Key{Cid: -1}, Value: []byte("bad")},
		rec(0, 2, "also ok"),
	}
	frames := Serialize(records, tstorage.BytesPayload{}, Options{WithAcq: true, SkipInvalid: true})
	if len(frames) != 1 {
		t.Fatalf("expected one cid-0 frame, got %d", len(frames))
	}
}

func TestTerminatorIsGuardValue(t *testing.T) {
	term := Terminator()
	if len(term) != 4 {
		t.Fatalf("Terminator() length = %d, want 4", len(term))
	}
}
