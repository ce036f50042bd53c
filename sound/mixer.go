package sound

import (
	"math"
	"sync"
	"time"
)

type voiceState int

const (
	voiceIdle voiceState = iota
	voicePlaying
	voiceReleasing
	voiceDone
)

// Mixer sums every started voice into a stereo bus and applies the shared reverb.
// Render is meant to be driven by the output stream callback.
type Mixer struct {
	sampleRate int
	fadeFrames int
	reverb     *Reverb

	mu     sync.Mutex
	voices []*voice
}

func NewMixer(sampleRate int, fade time.Duration, reverb ReverbConfig) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		fadeFrames: int(fade.Seconds() * float64(sampleRate)),
		reverb:     NewReverb(sampleRate, reverb),
	}
}

// NewSample wraps a decoded buffer into a Source played by this mixer
func (m *Mixer) NewSample(buf *Buffer) *Sample {
	return &Sample{mixer: m, buf: buf}
}

// Active returns the number of voices currently rendered
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render fills out with the next len(out[0]) frames. One output channel gets
// the mono downmix, two or more get left and right in the first two.
func (m *Mixer) Render(out [][]float32) {
	if len(out) == 0 {
		return
	}

	var ended []func()

	m.mu.Lock()
	for i := range out[0] {
		var l, r float32
		for _, v := range m.voices {
			vl, vr := v.next(m.fadeFrames)
			l += vl
			r += vr
		}
		l, r = m.reverb.Process(l, r)
		writeFrame(out, i, l, r)
	}

	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.state == voiceDone {
			if v.reachedEnd {
				ended = append(ended, v.drainSubscribers()...)
			}
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
	m.mu.Unlock()

	// Callbacks leave the audio thread so they can take their own locks.
	for _, fn := range ended {
		go fn()
	}
}

func writeFrame(out [][]float32, i int, l, r float32) {
	if len(out) == 1 {
		out[0][i] = clip((l + r) / 2)
		return
	}
	out[0][i] = clip(l)
	out[1][i] = clip(r)
	for c := 2; c < len(out); c++ {
		out[c][i] = 0
	}
}

func clip(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// dbToAmplitude is the inverse of 20*log10; the silence floor maps to exactly zero.
func dbToAmplitude(db float64) float32 {
	if db <= SilenceDb {
		return 0
	}
	return float32(math.Pow(10, db/20))
}
