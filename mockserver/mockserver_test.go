package mockserver

import (
	"testing"

	"github.com/atendeindustries/tstorage-clients"
)

func TestStorePutThenRangePreservesInsertionOrder(t *testing.T) {
	s := newStore()
	k1 := tstorage.Key{Cid: 1, Mid: 1, Moid: 1, Cap: 1, Acq: 1}
	k2 := tstorage.Key{Cid: 1, Mid: 2, Moid: 1, Cap: 1, Acq: 2}
	s.Put(k1, []byte("a"))
	s.Put(k2, []byte("b"))

	got := s.Range(tstorage.KeyMin(), tstorage.KeyMax())
	if len(got) != 2 {
		t.Fatalf("len(Range) = %d, want 2", len(got))
	}
	if string(got[0].Value) != "a" || string(got[1].Value) != "b" {
		t.Fatalf("Range did not preserve insertion order: %+v", got)
	}
}

func TestStoreRangeExcludesOutOfBoundsKeys(t *testing.T) {
	s := newStore()
	s.Put(tstorage.Key{Cid: 1, Mid: 1, Moid: 1, Cap: 1, Acq: 1}, []byte("in"))
	s.Put(tstorage.Key{Cid: 5, Mid: 1, Moid: 1, Cap: 1, Acq: 1}, []byte("out"))

	keyMin := tstorage.Key{Cid: 0, Mid: 0, Moid: 0, Cap: 0, Acq: 0}
	keyMax := tstorage.Key{Cid: 2, Mid: 100, Moid: 100, Cap: 100, Acq: 100}
	got := s.Range(keyMin, keyMax)
	if len(got) != 1 || string(got[0].Value) != "in" {
		t.Fatalf("Range = %+v, want only the in-bounds record", got)
	}
}

func TestKeyLEComponentwise(t *testing.T) {
	a := tstorage.Key{Cid: 1, Mid: 1, Moid: 1, Cap: 1, Acq: 1}
	b := tstorage.Key{Cid: 1, Mid: 1, Moid: 1, Cap: 1, Acq: 1}
	if !keyLEComponentwise(a, b) {
		t.Fatalf("equal keys should satisfy <=")
	}
	c := tstorage.Key{Cid: 2, Mid: 0, Moid: 0, Cap: 0, Acq: 0}
	if keyLEComponentwise(c, a) {
		t.Fatalf("Cid 2 should not be <= Cid 1 componentwise")
	}
}

func TestKeyLTComponentwiseRequiresAllFieldsStrict(t *testing.T) {
	a := tstorage.Key{Cid: 0, Mid: 0, Moid: 0, Cap: 0, Acq: 0}
	b := tstorage.Key{Cid: 1, Mid: 0, Moid: 1, Cap: 1, Acq: 1}
	if keyLTComponentwise(a, b) {
		t.Fatalf("equal Mid field should block strict componentwise ordering")
	}
	c := tstorage.Key{Cid: 1, Mid: 1, Moid: 1, Cap: 1, Acq: 1}
	if !keyLTComponentwise(a, c) {
		t.Fatalf("strictly increasing fields should satisfy componentwise <")
	}
}

func TestServerGetAcqClampsToFollowThreshold(t *testing.T) {
	s := New()
	s.observeAcq(1000)

	acq := s.getAcq(1000 + acqFollowThreshold + 1)
	if acq < 1000 {
		t.Fatalf("getAcq should resample forward past the threshold, got %d", acq)
	}
}

func TestServerGetAcqClampsToCallerCeiling(t *testing.T) {
	s := New()
	s.observeAcq(1_000_000)

	acq := s.getAcq(10)
	if acq != 10 {
		t.Fatalf("getAcq should clamp down to the caller's ceiling, got %d", acq)
	}
}

func TestServerObserveAcqOnlyMovesForward(t *testing.T) {
	s := New()
	s.observeAcq(100)
	s.observeAcq(50)
	if got := s.currentLastAcq(); got != 100 {
		t.Fatalf("currentLastAcq() = %d, want 100 (monotonic)", got)
	}
}
