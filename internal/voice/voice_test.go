package voice

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

// oggPage builds one page holding whole packets of under 255 bytes each.
func oggPage(headerType byte, seq uint32, packets ...[]byte) []byte {
	var body bytes.Buffer
	segs := make([]byte, 0, len(packets))
	for _, p := range packets {
		segs = append(segs, byte(len(p)))
		body.Write(p)
	}

	var page bytes.Buffer
	page.WriteString("OggS")
	page.WriteByte(0)
	page.WriteByte(headerType)
	binary.Write(&page, binary.LittleEndian, int64(0))
	binary.Write(&page, binary.LittleEndian, uint32(7))
	binary.Write(&page, binary.LittleEndian, seq)
	binary.Write(&page, binary.LittleEndian, uint32(0))
	page.WriteByte(byte(len(segs)))
	page.Write(segs)
	page.Write(body.Bytes())

	out := page.Bytes()
	var crc uint32
	for _, b := range out {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^b]
	}
	binary.LittleEndian.PutUint32(out[22:26], crc)
	return out
}

func opusStream() []byte {
	var buf bytes.Buffer
	buf.Write(oggPage(0x02, 0, []byte("OpusHead\x01\x02\x38\x01\x80\xbb\x00\x00\x00\x00\x00")))
	buf.Write(oggPage(0x00, 1, []byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00")))
	buf.Write(oggPage(0x00, 2, []byte{1, 2, 3}, []byte{4, 5}))
	buf.Write(oggPage(0x04, 3, []byte{6}))
	return buf.Bytes()
}

func TestDecodeOpus(t *testing.T) {
	var packets [][]byte
	err := DecodeOpus(bytes.NewReader(opusStream()), func(p []byte) error {
		packets = append(packets, append([]byte(nil), p...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5}, {6}}, packets)
}

func TestDecodeOpusRejectsNonOpus(t *testing.T) {
	stream := oggPage(0x02, 0, []byte("vorbis-ish"))
	err := DecodeOpus(bytes.NewReader(stream), func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestDecodeOpusStopsOnCallbackError(t *testing.T) {
	calls := 0
	err := DecodeOpus(bytes.NewReader(opusStream()), func([]byte) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestSoundLibrary(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"shuffle.ogg", "airhorn.ogg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), opusStream(), 0o644))
	}
	m := NewManager(nil, dir)

	names, err := m.Sounds()
	require.NoError(t, err)
	assert.Equal(t, []string{"airhorn", "shuffle"}, names)

	path, err := m.SoundPath("shuffle")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shuffle.ogg"), path)

	for _, bad := range []string{"", "missing", "../shuffle", ".hidden", "notes"} {
		_, err := m.SoundPath(bad)
		assert.ErrorIs(t, err, ErrUnknownSound, bad)
	}
}
