package sound

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Buffer holds decoded stereo PCM in the range [-1, 1]
type Buffer struct {
	SampleRate int
	Left       []float32
	Right      []float32
}

// Frames returns the number of sample frames in the buffer
func (b *Buffer) Frames() int {
	return len(b.Left)
}

func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodeMP3 decodes a whole mp3 stream into memory
func DecodeMP3(r io.Reader) (*Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	buf := convertBytesToBuffer(pcm, decoder.SampleRate())
	if buf.Frames() == 0 {
		return nil, ErrEmptyBuffer
	}
	return buf, nil
}

// convertBytesToBuffer converts interleaved 16-bit little-endian stereo bytes
func convertBytesToBuffer(pcm []byte, sampleRate int) *Buffer {
	frames := len(pcm) / 4
	buf := &Buffer{
		SampleRate: sampleRate,
		Left:       make([]float32, frames),
		Right:      make([]float32, frames),
	}
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4]))
		buf.Left[i] = float32(l) / 32768
		buf.Right[i] = float32(r) / 32768
	}
	return buf
}
