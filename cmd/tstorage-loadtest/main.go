// Command tstorage-loadtest is an example client: it loads records
// from a CSV file, puts them in batches, then reads a key range back
// with get_iter and prints what it got.
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/channel"
)

// putBatchSize bounds how many records are queued in one Put call,
// mirroring the reference loader's fixed per-call record budget.
const putBatchSize = 1_000_000

func main() {
	fs := flag.NewFlagSet("tstorage-loadtest", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tstorage-loadtest — put CSV records then get them back\n\n"+
			"Usage:\n  tstorage-loadtest host port cid1 mid1 moid1 cap1 acq1 cid2 mid2 moid2 cap2 acq2 path\n")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := fs.Args()
	if len(args) != 13 {
		fs.Usage()
		os.Exit(2)
	}

	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("tstorage-loadtest: bad port %q: %v", args[1], err)
	}
	keyMin, err := parseKey(args[2:7])
	if err != nil {
		log.Fatalf("tstorage-loadtest: bad key_min: %v", err)
	}
	keyMax, err := parseKey(args[7:12])
	if err != nil {
		log.Fatalf("tstorage-loadtest: bad key_max: %v", err)
	}
	path := args[12]

	records, err := loadRecordsFromCSV(path)
	if err != nil {
		log.Fatalf("tstorage-loadtest: %v", err)
	}

	cfg := channel.Config{Host: host, Port: port}
	ch := channel.NewChannel(cfg, tstorage.BytesPayload{})
	if resp := ch.Connect(); !resp.Status.OK() {
		log.Fatalf("tstorage-loadtest: connect: %s", resp.Status)
	}
	defer ch.Close()

	if err := doPut(ch, records); err != nil {
		log.Fatalf("tstorage-loadtest: put: %v", err)
	}
	if err := doGet(ch, keyMin, keyMax); err != nil {
		log.Fatalf("tstorage-loadtest: get: %v", err)
	}
}

func parseKey(fields []string) (tstorage.Key, error) {
	key, err := parseKeyNoAcq(fields[:4])
	if err != nil {
		return tstorage.Key{}, err
	}
	acq, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return tstorage.Key{}, err
	}
	key.Acq = acq
	return key, nil
}

func parseKeyNoAcq(fields []string) (tstorage.Key, error) {
	cid, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return tstorage.Key{}, err
	}
	mid, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return tstorage.Key{}, err
	}
	moid, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return tstorage.Key{}, err
	}
	cap_, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return tstorage.Key{}, err
	}
	return tstorage.Key{Cid: int32(cid), Mid: mid, Moid: int32(moid), Cap: cap_}, nil
}

// loadRecordsFromCSV reads comma-separated cid,mid,moid,cap,hexvalue
// lines.
func loadRecordsFromCSV(path string) ([]tstorage.Record[[]byte], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 5

	var records []tstorage.Record[[]byte]
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		key, err := parseKeyNoAcq(row[:4])
		if err != nil {
			return nil, err
		}
		value, err := hex.DecodeString(row[4])
		if err != nil {
			return nil, fmt.Errorf("decode hex value: %w", err)
		}
		records = append(records, tstorage.Record[[]byte]{Key: key, Value: value})
	}
	return records, nil
}

func doPut(ch *channel.Channel[[]byte], records []tstorage.Record[[]byte]) error {
	for start := 0; start < len(records); start += putBatchSize {
		end := start + putBatchSize
		if end > len(records) {
			end = len(records)
		}
		if resp := ch.Put(records[start:end]); !resp.Status.OK() {
			return fmt.Errorf("status %s", resp.Status)
		}
	}
	return nil
}

func doGet(ch *channel.Channel[[]byte], keyMin, keyMax tstorage.Key) error {
	it := ch.GetIter(keyMin, keyMax)
	for it.Next() {
		r := it.Record()
		fmt.Printf("%d,%d,%d,%d,%d,%s\n", r.Key.Cid, r.Key.Mid, r.Key.Moid, r.Key.Cap, r.Key.Acq, hex.EncodeToString(r.Value))
	}
	if !it.Result().Status.OK() {
		return fmt.Errorf("status %s", it.Result().Status)
	}
	return nil
}
