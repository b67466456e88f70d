package mockserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/broker"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// protocolError is a request the server could not make sense of; the
// connection responds with StatusError and keeps the session open
// (the mock server is lenient: one bad request does not tear down the
// whole connection, matching the reference implementation's
// per-request dispatch loop).
type protocolError struct {
	verb string
	err  error
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("mockserver: %s: %v", e.verb, e.err)
}

// conn handles one accepted connection: it serialises requests on
// that connection exactly as §5 requires of a session.
type conn struct {
	raw     net.Conn
	id      string
	srv     *Server
	timeout time.Duration
	nextReq int
}

func (c *conn) serve(ctx context.Context) {
	defer c.raw.Close()
	r := bufio.NewReader(c.raw)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.timeout > 0 {
			_ = c.raw.SetDeadline(time.Now().Add(c.timeout))
		}

		if err := c.handleOne(r); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var pe *protocolError
			if errors.As(err, &pe) {
				continue
			}
			return
		}
	}
}

func (c *conn) nextReqID() string {
	c.nextReq++
	return fmt.Sprintf("%s-%d", c.id, c.nextReq)
}

func (c *conn) handleOne(r *bufio.Reader) error {
	start := time.Now()
	hdr, err := c.readHeader(r)
	if err != nil {
		return err
	}

	switch wire.Command(hdr.Status) {
	case wire.CommandPutSafe:
		return c.handlePut(r, false, start)
	case wire.CommandPutASafe:
		return c.handlePut(r, true, start)
	case wire.CommandGet:
		return c.handleGet(r, start)
	case wire.CommandGetAcq:
		return c.handleGetAcq(r, start)
	default:
		_ = c.sendError()
		return &protocolError{verb: "dispatch", err: fmt.Errorf("unknown command %d", hdr.Status)}
	}
}

func (c *conn) readHeader(r *bufio.Reader) (wire.Header, error) {
	buf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return wire.Header{}, err
	}
	return wire.DecodeHeader(buf)
}

func (c *conn) readFullKey(r *bufio.Reader) (tstorage.Key, error) {
	buf := make([]byte, wire.FullKeySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return tstorage.Key{}, fmt.Errorf("read key: %w", err)
	}
	return wire.DecodeFullKey(buf)
}

func (c *conn) readKeyPair(r *bufio.Reader) (tstorage.Key, tstorage.Key, error) {
	keyMin, err := c.readFullKey(r)
	if err != nil {
		return tstorage.Key{}, tstorage.Key{}, err
	}
	keyMax, err := c.readFullKey(r)
	if err != nil {
		return tstorage.Key{}, tstorage.Key{}, err
	}
	return keyMin, keyMax, nil
}

func (c *conn) writeResponse(status int32, aux []byte) error {
	hdr := wire.Header{Status: status, Size: uint64(len(aux))}
	if _, err := c.raw.Write(hdr.Encode()); err != nil {
		return err
	}
	if len(aux) > 0 {
		if _, err := c.raw.Write(aux); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) sendError() error {
	return c.writeResponse(int32(tstorage.StatusError), nil)
}

func (c *conn) sendTerm() error {
	_, err := c.raw.Write(wire.EncodeInt32(wire.RecordSentinel))
	return err
}

// readRecordGroups reads the outbound record-stream format (cid
// groups terminated by cid=-1), decoding each record with the given
// key-rest layout, until the terminator is consumed.
func (c *conn) readRecordGroups(r *bufio.Reader, withAcq bool) ([]tstorage.Record[[]byte], error) {
	var out []tstorage.Record[[]byte]
	for {
		cidBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, cidBuf); err != nil {
			return nil, fmt.Errorf("read group cid: %w", err)
		}
		cid := wire.DecodeInt32(cidBuf)
		if cid == wire.PutEndGuard {
			return out, nil
		}

		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			return nil, fmt.Errorf("read group length: %w", err)
		}
		batchBytes := int(wire.DecodeInt32(lenBuf))

		payload := make([]byte, batchBytes)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read group payload: %w", err)
		}

		records, err := decodeGroup(payload, cid, withAcq)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
}

func decodeGroup(payload []byte, cid int32, withAcq bool) ([]tstorage.Record[[]byte], error) {
	var out []tstorage.Record[[]byte]
	pos := 0
	keyRestSize := wire.KeyNoCidAcqSize
	if withAcq {
		keyRestSize = wire.KeyNoCidSize
	}

	for pos < len(payload) {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("truncated record size")
		}
		recordSize := int(wire.DecodeInt32(payload[pos : pos+4]))
		pos += 4
		if recordSize < keyRestSize || recordSize > keyRestSize+maxPayload || pos+recordSize > len(payload) {
			return nil, fmt.Errorf("malformed record length %d", recordSize)
		}
		recBytes := payload[pos : pos+recordSize]
		pos += recordSize

		var key tstorage.Key
		var err error
		if withAcq {
			key, err = wire.DecodeKeyNoCid(recBytes[:keyRestSize], cid)
		} else {
			key, err = wire.DecodeKeyNoCidAcq(recBytes[:keyRestSize], cid, -1)
		}
		if err != nil {
			return nil, err
		}
		value := append([]byte(nil), recBytes[keyRestSize:]...)
		out = append(out, tstorage.Record[[]byte]{Key: key, Value: value})
	}
	return out, nil
}

func (c *conn) handlePut(r *bufio.Reader, withAcq bool, start time.Time) error {
	verb := "PUT"
	if withAcq {
		verb = "PUTA"
	}

	records, err := c.readRecordGroups(r, withAcq)
	if err != nil {
		_ = c.sendError()
		return &protocolError{verb: verb, err: err}
	}

	acqResponse := now()
	var lastPayload []byte
	for i := range records {
		key := records[i].Key
		if !key.Valid() || !keyLTComponentwise(key, tstorage.KeyMax()) {
			_ = c.sendError()
			return &protocolError{verb: verb, err: fmt.Errorf("invalid key cid=%d", key.Cid)}
		}
		if !withAcq {
			key.Acq = now()
			records[i].Key = key
		}
		c.srv.store.Put(key, records[i].Value)
		c.srv.observeAcq(now())
		lastPayload = records[i].Value
	}

	var aux []byte
	if withAcq {
		aux = append(wire.EncodeInt64(-1), wire.EncodeInt64(-1)...)
	} else {
		aux = append(wire.EncodeInt64(acqResponse), wire.EncodeInt64(acqResponse)...)
	}
	if err := c.writeResponse(int32(tstorage.StatusOK), aux); err != nil {
		return err
	}

	c.srv.publish(broker.Event{
		ID:          c.nextReqID(),
		ConnID:      c.id,
		Verb:        verb,
		RecordCount: len(records),
		Status:      int32(tstorage.StatusOK),
		Acq:         acqResponse,
		StartTime:   start,
		Duration:    time.Since(start),
		LastPayload: lastPayload,
	})
	return nil
}

func (c *conn) handleGet(r *bufio.Reader, start time.Time) error {
	keyMin, keyMax, err := c.readKeyPair(r)
	if err != nil {
		return &protocolError{verb: "GET", err: err}
	}

	if verr := c.validateKeyRange(keyMin, keyMax); verr != nil {
		_ = c.sendTerm()
		_ = c.sendError()
		c.srv.publish(broker.Event{
			ID: c.nextReqID(), ConnID: c.id, Verb: "GET",
			KeyMin: &keyMin, KeyMax: &keyMax,
			Status: int32(tstorage.StatusError), Err: verr.Error(),
			StartTime: start, Duration: time.Since(start),
		})
		return nil
	}

	if err := c.writeResponse(int32(tstorage.StatusOK), nil); err != nil {
		return err
	}

	records := c.srv.store.Range(keyMin, keyMax)
	var lastPayload []byte
	for _, rec := range records {
		keyBytes := wire.EncodeFullKey(rec.Key)
		recordSize := int32(len(keyBytes) + len(rec.Value))
		if _, err := c.raw.Write(wire.EncodeInt32(recordSize)); err != nil {
			return err
		}
		if _, err := c.raw.Write(keyBytes); err != nil {
			return err
		}
		if len(rec.Value) > 0 {
			if _, err := c.raw.Write(rec.Value); err != nil {
				return err
			}
		}
		lastPayload = rec.Value
	}
	if err := c.sendTerm(); err != nil {
		return err
	}

	lastAcq := c.srv.currentLastAcq()
	aux := wire.EncodeInt64(lastAcq)
	if err := c.writeResponse(int32(tstorage.StatusOK), aux); err != nil {
		return err
	}

	c.srv.publish(broker.Event{
		ID: c.nextReqID(), ConnID: c.id, Verb: "GET",
		KeyMin: &keyMin, KeyMax: &keyMax,
		RecordCount: len(records), Status: int32(tstorage.StatusOK), Acq: lastAcq,
		StartTime: start, Duration: time.Since(start), LastPayload: lastPayload,
	})
	return nil
}

func (c *conn) handleGetAcq(r *bufio.Reader, start time.Time) error {
	keyMin, keyMax, err := c.readKeyPair(r)
	if err != nil {
		return &protocolError{verb: "GETACQ", err: err}
	}
	if verr := c.validateKeyRange(keyMin, keyMax); verr != nil {
		_ = c.sendError()
		c.srv.publish(broker.Event{
			ID: c.nextReqID(), ConnID: c.id, Verb: "GETACQ",
			KeyMin: &keyMin, KeyMax: &keyMax,
			Status: int32(tstorage.StatusError), Err: verr.Error(),
			StartTime: start, Duration: time.Since(start),
		})
		return nil
	}

	acq := c.srv.getAcq(keyMax.Acq)
	if err := c.writeResponse(int32(tstorage.StatusOK), wire.EncodeInt64(acq)); err != nil {
		return err
	}

	c.srv.publish(broker.Event{
		ID: c.nextReqID(), ConnID: c.id, Verb: "GETACQ",
		KeyMin: &keyMin, KeyMax: &keyMax,
		Status: int32(tstorage.StatusOK), Acq: acq,
		StartTime: start, Duration: time.Since(start),
	})
	return nil
}

// validateKeyRange implements §4.G's key validation: both keys valid,
// the range non-empty and strictly ordered componentwise, and the
// range not reaching into the future relative to the server's clock.
func (c *conn) validateKeyRange(keyMin, keyMax tstorage.Key) error {
	if !keyMin.Valid() || !keyMax.Valid() {
		return fmt.Errorf("invalid key in range")
	}
	if !keyLTComponentwise(keyMin, keyMax) {
		return fmt.Errorf("key_min must be strictly less than key_max componentwise")
	}
	if keyMin.Acq > c.srv.currentLastAcq() {
		return fmt.Errorf("key_min.acq is ahead of the server clock")
	}
	return nil
}
