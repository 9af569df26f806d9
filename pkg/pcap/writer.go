package pcap

import (
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"DDoSDefender/internal/engine/protocol"
	"DDoSDefender/internal/model"
)

const snapshotLen = 65535

// Writer writes Ethernet frames in the classic pcap format.
type Writer struct {
	w *pcapgo.Writer
}

// NewWriter writes the file header to out.
func NewWriter(out io.Writer) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(snapshotLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write file header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WritePacket writes one captured frame unchanged.
func (w *Writer) WritePacket(ci gopacket.CaptureInfo, data []byte) error {
	return w.w.WritePacket(ci, data)
}

// WriteRecord encodes rec as a frame stamped with rec.Timestamp.
func (w *Writer) WriteRecord(rec model.RawTrafficRecord) error {
	frame, err := protocol.Encode(rec)
	if err != nil {
		return err
	}
	return w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     rec.Timestamp,
		CaptureLength: len(frame),
		Length:        len(frame),
	}, frame)
}
