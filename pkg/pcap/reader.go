// Package pcap replays capture files as raw traffic records and writes
// records back out as captures.
package pcap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/engine/protocol"
	"DDoSDefender/internal/model"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng stream.
type Reader struct {
	src     packetReader
	closer  io.Closer
	log     logrus.FieldLogger
	skipped int
}

// Open opens a capture file.
func Open(filePath string, log logrus.FieldLogger) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, log)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	r.closer = f
	return r, nil
}

// NewReader detects the capture format from the first bytes of in.
func NewReader(in io.Reader, log logrus.FieldLogger) (*Reader, error) {
	br := bufio.NewReader(in)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var src packetReader
	if bytes.Equal(magic, ngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, err
	}
	return &Reader{src: src, log: log}, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Skipped reports how many packets could not be turned into records.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the next decodable record, or io.EOF at the end of the capture.
// Frames that carry no IP layer are skipped.
func (r *Reader) Next() (model.RawTrafficRecord, error) {
	for {
		data, ci, err := r.src.ReadPacketData()
		if err != nil {
			return model.RawTrafficRecord{}, err
		}
		packet := gopacket.NewPacket(data, r.src.LinkType(), gopacket.Lazy)
		md := packet.Metadata()
		md.CaptureInfo = ci
		rec, err := protocol.ParsePacket(packet)
		if err != nil {
			r.skipped++
			r.log.WithError(err).Debug("Skipping packet")
			continue
		}
		return rec, nil
	}
}

// ReadRecords sends every record of the capture to out and closes it when
// the capture ends. It returns nil at a clean end of file.
func (r *Reader) ReadRecords(out chan<- model.RawTrafficRecord) error {
	defer close(out)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		out <- rec
	}
}

// ReadBatches reads the capture in batches of size n and hands each to fn.
func (r *Reader) ReadBatches(n int, fn func([]model.RawTrafficRecord) error) (int, error) {
	if n <= 0 {
		n = 1000
	}
	total := 0
	batch := make([]model.RawTrafficRecord, 0, n)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, rec)
		if len(batch) == n {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = make([]model.RawTrafficRecord, 0, n)
		}
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}
