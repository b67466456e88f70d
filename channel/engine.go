package channel

import (
	"context"
	"time"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/batch"
	"github.com/atendeindustries/tstorage-clients/internal/parse"
	"github.com/atendeindustries/tstorage-clients/internal/recvbuf"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// deadlineSetter is implemented by net.Conn and tls.Conn; both the
// blocking and cooperative Channel flavours wrap one.
type deadlineSetter interface {
	SetDeadline(t time.Time) error
}

// applyDeadline pushes a context deadline (if any) or an explicit
// timeout onto tr, so a single suspension point honours whichever the
// caller configured.
func applyDeadline(ctx context.Context, tr transport, timeout time.Duration) {
	ds, ok := tr.(deadlineSetter)
	if !ok {
		return
	}
	if dl, has := ctx.Deadline(); has {
		_ = ds.SetDeadline(dl)
		return
	}
	if timeout > 0 {
		_ = ds.SetDeadline(time.Now().Add(timeout))
		return
	}
	_ = ds.SetDeadline(time.Time{})
}

// writeAll writes the full buffer, honouring ctx cancellation as a
// suspension point; partial failures are the caller's concern (put's
// send-side errors are swallowed per protocol contract).
func writeAll(ctx context.Context, tr transport, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := tr.Write(b)
	return err
}

// readInto reads into buf.FreeSpace(), returning the number of bytes
// read. Zero bytes with a nil error never happens for io.Reader
// implementations in this package; io.EOF signals peer disconnect.
func readInto(ctx context.Context, tr transport, buf *recvbuf.Buffer, cap int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	space := buf.FreeSpace()
	if cap > 0 && len(space) > cap {
		space = space[:cap]
	}
	n, err := tr.Read(space)
	if n > 0 {
		buf.IncreaseAvailable(n)
	}
	return n, err
}

// engineConfig bundles the per-call knobs shared by both Channel
// flavours.
type engineConfig struct {
	timeout        time.Duration // blocking flavour only; async uses ctx deadlines
	recvBufferSize int
	memoryLimit    int // 0 means unlimited
	maxBatchSize   int
	skipInvalid    bool
}

const defaultRecvBufferSize = 65536

// doPut implements put/puta: §4.F.2. Send-side errors are swallowed;
// only a failed response read surfaces as DISCONNECTED.
func doPut[T any](ctx context.Context, tr transport, cfg engineConfig, cmd wire.Command, withAcq bool, records []tstorage.Record[T], pt tstorage.PayloadType[T]) tstorage.Response {
	applyDeadline(ctx, tr, cfg.timeout)

	hdr := wire.Header{Status: int32(cmd), Size: 0}
	_ = writeAll(ctx, tr, hdr.Encode())

	frames := batch.Serialize(records, pt, batch.Options{
		WithAcq:      withAcq,
		MaxBatchSize: cfg.maxBatchSize,
		SkipInvalid:  cfg.skipInvalid,
	})
	for _, f := range frames {
		_ = writeAll(ctx, tr, batch.EncodeFrame(f))
	}
	_ = writeAll(ctx, tr, batch.Terminator())

	buf := recvbuf.New(wire.HeaderSize + wire.AcqPairSize)
	for {
		if _, err := readInto(ctx, tr, buf, 0); err != nil {
			return tstorage.Response{Status: tstorage.StatusDisconnected}
		}
		resp, ok, err := parse.HandleResponse(buf, wire.AcqPairSize)
		if err != nil {
			return tstorage.Response{Status: tstorage.StatusUnparseableEntity}
		}
		if !ok {
			continue
		}
		if resp.Header.Status != 0 {
			return tstorage.Response{Status: tstorage.StatusError}
		}
		return tstorage.Response{Status: tstorage.StatusOK}
	}
}

// doGetAcq implements get_acq: §4.F.3.
func doGetAcq(ctx context.Context, tr transport, cfg engineConfig, keyMin, keyMax tstorage.Key) tstorage.ResponseAcq {
	applyDeadline(ctx, tr, cfg.timeout)

	hdr := wire.Header{Status: int32(wire.CommandGetAcq), Size: wire.GetRequestAuxLen}
	if err := writeAll(ctx, tr, hdr.Encode()); err != nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	if err := writeAll(ctx, tr, wire.EncodeFullKey(keyMin)); err != nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	if err := writeAll(ctx, tr, wire.EncodeFullKey(keyMax)); err != nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}

	buf := recvbuf.New(wire.HeaderSize + wire.AcqSize)
	for {
		if _, err := readInto(ctx, tr, buf, 0); err != nil {
			return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
		}
		resp, ok, err := parse.HandleResponse(buf, wire.AcqSize)
		if err != nil {
			return tstorage.ResponseAcq{Status: tstorage.StatusUnparseableEntity}
		}
		if !ok {
			continue
		}
		if resp.Header.Status != 0 {
			return tstorage.ResponseAcq{Status: tstorage.StatusError}
		}
		return tstorage.ResponseAcq{Status: tstorage.StatusOK, Acq: wire.DecodeInt64(resp.Aux)}
	}
}

// getState is the INITIAL_HEADER -> RECORDS_PARSING -> FINAL_HEADER
// state machine shared by get, get_stream, and get_iter: §4.F.4.
type getState int

const (
	stateInitialHeader getState = iota
	stateRecordsParsing
	stateFinalHeader
)

// sendGetRequest issues the GET header and key pair common to get,
// get_stream, and get_iter.
func sendGetRequest(ctx context.Context, tr transport, cfg engineConfig, keyMin, keyMax tstorage.Key) error {
	applyDeadline(ctx, tr, cfg.timeout)
	hdr := wire.Header{Status: int32(wire.CommandGet), Size: wire.GetRequestAuxLen}
	if err := writeAll(ctx, tr, hdr.Encode()); err != nil {
		return err
	}
	if err := writeAll(ctx, tr, wire.EncodeFullKey(keyMin)); err != nil {
		return err
	}
	return writeAll(ctx, tr, wire.EncodeFullKey(keyMax))
}

// bufferSizeFor picks the initial receive buffer capacity honouring
// both the caller's requested size and an active memory limit.
func bufferSizeFor(recvBufferSize, memoryLimit int) int {
	size := recvBufferSize
	if size <= 0 {
		size = defaultRecvBufferSize
	}
	if memoryLimit > 0 && memoryLimit < size {
		size = memoryLimit
	}
	if size < recvbuf.MinCapacity {
		size = recvbuf.MinCapacity
	}
	return size
}

// doGet implements the buffered get() form: §4.F.4, first bullet.
func doGet[T any](ctx context.Context, tr transport, cfg engineConfig, keyMin, keyMax tstorage.Key, pt tstorage.PayloadType[T]) tstorage.ResponseGet[T] {
	if err := sendGetRequest(ctx, tr, cfg, keyMin, keyMax); err != nil {
		return tstorage.ResponseGet[T]{Status: tstorage.StatusDisconnected}
	}

	buf := recvbuf.New(bufferSizeFor(cfg.recvBufferSize, cfg.memoryLimit))
	state := stateInitialHeader
	total := 0
	var records []tstorage.Record[T]

	for {
		cap := 0
		if cfg.memoryLimit > 0 {
			cap = cfg.memoryLimit - total
			if cap <= 0 {
				return tstorage.ResponseGet[T]{Status: tstorage.StatusNoMemory, Records: records}
			}
		}
		n, err := readInto(ctx, tr, buf, cap)
		total += n
		if n == 0 && err != nil {
			return tstorage.ResponseGet[T]{Status: tstorage.StatusDisconnected, Records: records}
		}

		if state == stateInitialHeader {
			resp, ok, herr := parse.HandleResponse(buf, 0)
			if herr != nil {
				return tstorage.ResponseGet[T]{Status: tstorage.StatusUnparseableEntity, Records: records}
			}
			if ok {
				if resp.Header.Status != 0 {
					return tstorage.ResponseGet[T]{Status: tstorage.StatusBadRequest, Records: records}
				}
				state = stateRecordsParsing
			}
		}

		if state == stateRecordsParsing {
			verdict := parse.ParseRecords(buf, &records, pt, cfg.memoryLimit)
			switch verdict {
			case parse.NeedsMoreBytes:
			case parse.Finished:
				state = stateFinalHeader
			case parse.Unparseable:
				return tstorage.ResponseGet[T]{Status: tstorage.StatusUnparseableEntity, Records: records}
			case parse.RecordTooBig:
				return tstorage.ResponseGet[T]{Status: tstorage.StatusNoMemory, Records: records}
			}
		}

		if state == stateFinalHeader {
			resp, ok, herr := parse.HandleResponse(buf, wire.AcqSize)
			if herr != nil {
				return tstorage.ResponseGet[T]{Status: tstorage.StatusUnparseableEntity, Records: records}
			}
			if ok {
				if resp.Header.Status != 0 {
					return tstorage.ResponseGet[T]{Status: tstorage.StatusError, Records: records}
				}
				return tstorage.ResponseGet[T]{Status: tstorage.StatusOK, Acq: wire.DecodeInt64(resp.Aux), Records: records}
			}
		}
	}
}

// streamCallback is invoked with each flushed batch of records.
type streamCallback[T any] func(batch []tstorage.Record[T])

// doGetStream implements get_stream: §4.F.4, second bullet.
func doGetStream[T any](ctx context.Context, tr transport, cfg engineConfig, keyMin, keyMax tstorage.Key, pt tstorage.PayloadType[T], cb streamCallback[T]) tstorage.ResponseAcq {
	if err := sendGetRequest(ctx, tr, cfg, keyMin, keyMax); err != nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}

	buf := recvbuf.New(bufferSizeFor(cfg.recvBufferSize, cfg.memoryLimit))
	state := stateInitialHeader
	total := 0

	flush := func(pending *[]tstorage.Record[T]) {
		if len(*pending) == 0 {
			return
		}
		cb(*pending)
		*pending = nil
	}

	var pending []tstorage.Record[T]

	for {
		cap := 0
		if cfg.memoryLimit > 0 {
			cap = cfg.memoryLimit - total
			if cap <= 0 {
				flush(&pending)
				return tstorage.ResponseAcq{Status: tstorage.StatusNoMemory}
			}
		}
		n, err := readInto(ctx, tr, buf, cap)
		total += n
		if n == 0 && err != nil {
			flush(&pending)
			return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
		}

		if state == stateInitialHeader {
			resp, ok, herr := parse.HandleResponse(buf, 0)
			if herr != nil {
				flush(&pending)
				return tstorage.ResponseAcq{Status: tstorage.StatusUnparseableEntity}
			}
			if ok {
				if resp.Header.Status != 0 {
					return tstorage.ResponseAcq{Status: tstorage.StatusBadRequest}
				}
				state = stateRecordsParsing
			}
		}

		if state == stateRecordsParsing {
			verdict := parse.ParseRecords(buf, &pending, pt, cfg.memoryLimit)
			switch verdict {
			case parse.NeedsMoreBytes:
				if cfg.memoryLimit > 0 && total >= cfg.memoryLimit && len(pending) > 0 {
					flush(&pending)
					total = buf.Len()
				}
			case parse.Finished:
				flush(&pending)
				total = buf.Len()
				state = stateFinalHeader
			case parse.Unparseable:
				flush(&pending)
				return tstorage.ResponseAcq{Status: tstorage.StatusUnparseableEntity}
			case parse.RecordTooBig:
				flush(&pending)
				return tstorage.ResponseAcq{Status: tstorage.StatusNoMemory}
			}
		}

		if state == stateFinalHeader {
			resp, ok, herr := parse.HandleResponse(buf, wire.AcqSize)
			if herr != nil {
				return tstorage.ResponseAcq{Status: tstorage.StatusUnparseableEntity}
			}
			if ok {
				if resp.Header.Status != 0 {
					return tstorage.ResponseAcq{Status: tstorage.StatusError}
				}
				return tstorage.ResponseAcq{Status: tstorage.StatusOK, Acq: wire.DecodeInt64(resp.Aux)}
			}
		}
	}
}
