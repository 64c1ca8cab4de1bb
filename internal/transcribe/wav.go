package transcribe

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// DecodeWAV extracts 16-bit little-endian PCM plus format parameters
// from an uploaded WAV file.
func DecodeWAV(r io.ReadSeeker) (pcm []byte, sampleRate, channels int, err error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode wav: %w", err)
	}

	pcm = make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, buf.Format.SampleRate, buf.Format.NumChannels, nil
}
