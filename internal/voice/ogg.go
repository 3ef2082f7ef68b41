package voice

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jonas747/ogg"
)

var (
	opusHead = []byte("OpusHead")
	opusTags = []byte("OpusTags")
)

// DecodeOpus demuxes an Ogg/Opus stream and calls fn with every audio packet
// in order. The OpusHead and OpusTags header packets are skipped.
func DecodeOpus(r io.Reader, fn func(packet []byte) error) error {
	dec := ogg.NewPacketDecoder(ogg.NewDecoder(r))
	sawHead := false
	for {
		packet, _, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			if !sawHead {
				return fmt.Errorf("not an opus stream: missing OpusHead")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode ogg: %w", err)
		}

		switch {
		case bytes.HasPrefix(packet, opusHead):
			sawHead = true
			continue
		case bytes.HasPrefix(packet, opusTags):
			continue
		case !sawHead:
			return fmt.Errorf("not an opus stream: audio before OpusHead")
		}

		if err := fn(packet); err != nil {
			return err
		}
	}
}
