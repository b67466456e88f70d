// Package batch serializes outbound put/puta record streams: records
// are grouped by cid (order of first appearance preserved, not
// lexicographic), and each group is emitted as one or more
// size-bounded frames. The grouping step may reorder records relative
// to the caller's input set; only relative order within a cid is kept.
package batch

import (
	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// Frame is one length-prefixed payload chunk of a cid group; a group
// whose records exceed MaxBatchSize yields several Frames with the
// same Cid, ready to be written to the transport in order.
type Frame struct {
	Cid     int32
	Payload []byte
}

// Options configures the serialization pass.
type Options struct {
	WithAcq      bool // true for PUTASAFE, false for PUTSAFE
	MaxBatchSize int  // 0 means unbounded
	SkipInvalid  bool
}

// Serialize groups records by cid (an unconditional, complete grouping
// pass over the whole input, validity notwithstanding) and emits
// size-bounded frames per group in first-occurrence order. Validity
// depends only on cid, so a group is either wholly valid or wholly
// invalid. An invalid group is skipped when SkipInvalid is true;
// otherwise serialization stops there (without an error) and no later
// group is emitted, per the truncated-but-valid-put contract; the
// caller is still responsible for appending the terminator.
func Serialize[T any](records []tstorage.Record[T], pt tstorage.PayloadType[T], opt Options) []Frame {
	groups := make(map[int32][]tstorage.Record[T])
	var order []int32

	for _, r := range records {
		if _, seen := groups[r.Key.Cid]; !seen {
			order = append(order, r.Key.Cid)
		}
		groups[r.Key.Cid] = append(groups[r.Key.Cid], r)
	}

	var frames []Frame
	for _, cid := range order {
		if !opt.SkipInvalid && !groups[cid][0].Key.Valid() {
			break
		}
		frames = append(frames, serializeGroup(cid, groups[cid], pt, opt)...)
	}
	return frames
}

func serializeGroup[T any](cid int32, records []tstorage.Record[T], pt tstorage.PayloadType[T], opt Options) []Frame {
	var frames []Frame
	var payload []byte

	flush := func() {
		if len(payload) == 0 {
			return
		}
		frames = append(frames, Frame{Cid: cid, Payload: payload})
		payload = nil
	}

	for _, r := range records {
		if !r.Key.Valid() {
			if opt.SkipInvalid {
				continue
			}
			break
		}
		recBytes := encodeRecord(r, pt, opt.WithAcq)
		if opt.MaxBatchSize > 0 && len(payload) > 0 && len(payload)+len(recBytes) > opt.MaxBatchSize {
			flush()
		}
		payload = append(payload, recBytes...)
	}
	flush()
	return frames
}

// encodeRecord produces record_size:i32 + key_rest + value_bytes for
// one outbound record.
func encodeRecord[T any](r tstorage.Record[T], pt tstorage.PayloadType[T], withAcq bool) []byte {
	value := pt.ToBytes(r.Value)

	var keyRest []byte
	if withAcq {
		keyRest = wire.EncodeKeyNoCid(r.Key)
	} else {
		keyRest = wire.EncodeKeyNoCidAcq(r.Key)
	}

	recordSize := int32(len(keyRest) + len(value))
	out := make([]byte, 0, 4+len(keyRest)+len(value))
	out = append(out, wire.EncodeInt32(recordSize)...)
	out = append(out, keyRest...)
	out = append(out, value...)
	return out
}

// EncodeFrame produces a group's full wire bytes: cid:i32,
// batch_bytes:i32, payload.
func EncodeFrame(f Frame) []byte {
	out := make([]byte, 0, 8+len(f.Payload))
	out = append(out, wire.EncodeInt32(f.Cid)...)
	out = append(out, wire.EncodeInt32(int32(len(f.Payload)))...)
	out = append(out, f.Payload...)
	return out
}

// Terminator is the i32=-1 guard ending an outbound put/puta stream.
func Terminator() []byte { return wire.EncodeInt32(wire.PutEndGuard) }
