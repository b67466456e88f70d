// Package parse implements the inbound record-parsing state machine
// run over a recvbuf.Buffer during get/get_stream/get_iter: it turns
// framed bytes into tstorage.Record values or a parsing verdict, and
// decodes the fixed-shape response headers that bracket a record
// stream.
package parse

import (
	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/recvbuf"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// Verdict is the outcome of one parse_records pass over the buffer.
type Verdict int

const (
	// NeedsMoreBytes means the buffer holds an incomplete record or
	// header; the caller must read more from the transport.
	NeedsMoreBytes Verdict = iota
	// Finished means the sentinel record_size=0 was consumed; the
	// stream's trailing response header follows.
	Finished
	// Unparseable means a record's key or payload failed to decode.
	Unparseable
	// RecordTooBig means a record announced a size exceeding the
	// caller's max_size limit.
	RecordTooBig
)

// ParseRecords consumes as many whole records as are available in buf,
// appending each to sink, until it hits the sentinel, a parse failure,
// a too-big record, or runs out of bytes. maxSize, if positive, bounds
// 4+record_size; pass 0 to disable the check.
func ParseRecords[T any](buf *recvbuf.Buffer, sink *[]tstorage.Record[T], pt tstorage.PayloadType[T], maxSize int) Verdict {
	for {
		if !buf.Fits(4) {
			buf.Truncate()
			return NeedsMoreBytes
		}
		sizeBytes := buf.Peek(4, 0)
		recordSize := int(wire.DecodeInt32(sizeBytes))

		if recordSize == 0 {
			buf.Increase(4)
			buf.Truncate()
			return Finished
		}

		frameLen := 4 + recordSize
		if maxSize > 0 && frameLen > maxSize {
			return RecordTooBig
		}

		if !buf.Fits(frameLen) {
			buf.Truncate()
			if !buf.FitsEventually(frameLen) {
				buf.GrowBuffer(frameLen)
			}
			return NeedsMoreBytes
		}

		recordBytes := buf.Peek(recordSize, 4)
		rec, err := parseRecord(recordBytes, pt)
		if err != nil {
			return Unparseable
		}
		*sink = append(*sink, rec)
		buf.Increase(frameLen)
	}
}

// parseRecord decodes a 32-byte full key followed by a payload from a
// single record's bytes (record_size worth, key included).
func parseRecord[T any](b []byte, pt tstorage.PayloadType[T]) (tstorage.Record[T], error) {
	if len(b) < wire.FullKeySize {
		return tstorage.Record[T]{}, errShortRecord
	}
	key, err := wire.DecodeFullKey(b[:wire.FullKeySize])
	if err != nil {
		return tstorage.Record[T]{}, err
	}
	if !key.Valid() {
		return tstorage.Record[T]{}, errInvalidKey
	}
	value, err := pt.FromBytes(b[wire.FullKeySize:])
	if err != nil {
		return tstorage.Record[T]{}, err
	}
	return tstorage.Record[T]{Key: key, Value: value}, nil
}

// DecodedResponse is the result of a successful HandleResponse call.
type DecodedResponse struct {
	Header wire.Header
	Aux    []byte
}

// HandleResponse reads a 12-byte header and, when its status is 0, the
// auxLen bytes of trailer that follow it (auxLen comes from the
// caller, since the meaning of the trailer depends on which verb is
// in flight); on a non-zero status no trailer is read. The header's
// size field is not consulted. It reports ok=false if more bytes are
// needed.
func HandleResponse(buf *recvbuf.Buffer, auxLen int) (resp DecodedResponse, ok bool, err error) {
	if !buf.Fits(wire.HeaderSize) {
		return DecodedResponse{}, false, nil
	}
	hdr, decErr := wire.DecodeHeader(buf.Peek(wire.HeaderSize, 0))
	if decErr != nil {
		return DecodedResponse{}, false, decErr
	}

	want := auxLen
	if hdr.Status != 0 {
		want = 0
	}
	if !buf.Fits(wire.HeaderSize + want) {
		return DecodedResponse{}, false, nil
	}

	var aux []byte
	if want > 0 {
		aux = append([]byte(nil), buf.Peek(want, wire.HeaderSize)...)
	}
	buf.Increase(wire.HeaderSize + want)
	return DecodedResponse{Header: hdr, Aux: aux}, true, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const (
	errShortRecord = parseError("parse: record shorter than a full key")
	errInvalidKey  = parseError("parse: record carries an invalid key")
)
