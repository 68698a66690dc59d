// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/vanguard-fleet/commsnet/lib/codec"
)

// DefaultFileBuffer is the event buffer size when the options leave
// it unset.
const DefaultFileBuffer = 256

// chainRecord is one stored audit record. Prev is the BLAKE3 hash of
// the previous record's encoded bytes, nil for the first record.
// Because the codec is deterministic, a verifier re-encodes each
// decoded record and gets the identical bytes to hash.
type chainRecord struct {
	Event Event  `cbor:"event"`
	Prev  []byte `cbor:"prev"`
}

// FileSink writes audit events to a zstd-compressed, hash-chained log
// file. One file per engine run: the chain starts fresh at creation.
// Emit never blocks; events beyond the buffer are counted and dropped.
type FileSink struct {
	logger *slog.Logger

	events  chan Event
	dropped atomic.Uint64
	closed  atomic.Bool

	done chan struct{}

	// Writer-goroutine state. Only run() touches these after New.
	file       *os.File
	compressor *zstd.Encoder
	prev       []byte

	closeOnce sync.Once
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates the log file, truncating any previous content,
// and starts the writer goroutine. Buffer <= 0 means
// DefaultFileBuffer.
func NewFileSink(path string, buffer int, logger *slog.Logger) (*FileSink, error) {
	if buffer <= 0 {
		buffer = DefaultFileBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating audit log: %w", err)
	}
	compressor, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating audit compressor: %w", err)
	}

	sink := &FileSink{
		logger:     logger,
		events:     make(chan Event, buffer),
		done:       make(chan struct{}),
		file:       file,
		compressor: compressor,
	}
	go sink.run()
	return sink, nil
}

// Emit queues an event. Drops (with a counter) when the buffer is
// full or the sink is closed.
func (s *FileSink) Emit(event Event) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the sink
// could not keep up.
func (s *FileSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close flushes buffered events and closes the file.
func (s *FileSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.events)
	})
	<-s.done

	var errs []error
	if err := s.compressor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("flushing audit compressor: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audit log: %w", err))
	}
	return errors.Join(errs...)
}

func (s *FileSink) run() {
	defer close(s.done)
	for event := range s.events {
		if err := s.writeRecord(event); err != nil {
			s.logger.Error("writing audit record failed", "error", err)
			s.dropped.Add(1)
		}
	}
}

func (s *FileSink) writeRecord(event Event) error {
	record := chainRecord{Event: event, Prev: s.prev}
	encoded, err := codec.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := s.compressor.Write(encoded); err != nil {
		return err
	}
	sum := blake3.Sum256(encoded)
	s.prev = sum[:]
	return nil
}

// VerifyChain reads a sink's output and checks the hash chain,
// returning the number of valid records. A broken link means the file
// was truncated or rewritten after the fact.
func VerifyChain(r io.Reader) (int, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer decompressor.Close()

	decoder := codec.NewDecoder(decompressor)
	var prev []byte
	count := 0
	for {
		var record chainRecord
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("decoding audit record %d: %w", count, err)
		}
		if !bytes.Equal(record.Prev, prev) {
			return count, fmt.Errorf("audit chain broken at record %d", count)
		}
		encoded, err := codec.Marshal(record)
		if err != nil {
			return count, fmt.Errorf("re-encoding audit record %d: %w", count, err)
		}
		sum := blake3.Sum256(encoded)
		prev = sum[:]
		count++
	}
}
