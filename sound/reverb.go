package sound

import (
	"math"
	"time"
)

// Comb and allpass lengths in samples at 44.1kHz, scaled for other rates.
var (
	combDelays    = [4]int{1687, 1601, 2053, 2251}
	allpassDelays = [2]int{389, 307}
)

// stereo spread added to the right channel delay lines
const stereoSpread = 23

type ReverbConfig struct {
	Decay time.Duration
	Wet   float64
}

type combFilter struct {
	buffer []float32
	pos    int
	decay  float32
}

func (c *combFilter) process(input float32) float32 {
	delayed := c.buffer[c.pos]
	c.buffer[c.pos] = input + delayed*c.decay
	c.pos = (c.pos + 1) % len(c.buffer)
	return delayed
}

type allpassFilter struct {
	buffer []float32
	pos    int
}

func (a *allpassFilter) process(input float32) float32 {
	delayed := a.buffer[a.pos]
	a.buffer[a.pos] = input + delayed*0.5
	a.pos = (a.pos + 1) % len(a.buffer)
	return delayed - input
}

type reverbChannel struct {
	combs     [4]combFilter
	allpasses [2]allpassFilter
}

func newReverbChannel(sampleRate int, decay time.Duration, spread int) reverbChannel {
	var ch reverbChannel
	scale := float64(sampleRate) / 44100
	for i, d := range combDelays {
		n := max(1, int(float64(d+spread)*scale))
		ch.combs[i] = combFilter{
			buffer: make([]float32, n),
			decay:  combFeedback(n, sampleRate, decay),
		}
	}
	for i, d := range allpassDelays {
		n := max(1, int(float64(d+spread)*scale))
		ch.allpasses[i] = allpassFilter{buffer: make([]float32, n)}
	}
	return ch
}

// combFeedback picks the gain that makes a comb of n samples fall by 60 dB over decay.
func combFeedback(n, sampleRate int, decay time.Duration) float32 {
	if decay <= 0 {
		return 0
	}
	loopSeconds := float64(n) / float64(sampleRate)
	return float32(math.Pow(10, -3*loopSeconds/decay.Seconds()))
}

func (ch *reverbChannel) process(input float32) float32 {
	var out float32
	for i := range ch.combs {
		out += ch.combs[i].process(input)
	}
	for i := range ch.allpasses {
		out = ch.allpasses[i].process(out)
	}
	return out * 0.25
}

// Reverb is a small Schroeder reverb shared by every voice of a mixer
type Reverb struct {
	wet   float32
	left  reverbChannel
	right reverbChannel
}

func NewReverb(sampleRate int, config ReverbConfig) *Reverb {
	wet := math.Max(0, math.Min(1, config.Wet))
	return &Reverb{
		wet:   float32(wet),
		left:  newReverbChannel(sampleRate, config.Decay, 0),
		right: newReverbChannel(sampleRate, config.Decay, stereoSpread),
	}
}

// Process mixes the reverberated signal into a dry stereo sample
func (r *Reverb) Process(l, rt float32) (float32, float32) {
	if r.wet == 0 {
		return l, rt
	}
	wl := r.left.process(l)
	wr := r.right.process(rt)
	return l*(1-r.wet) + wl*r.wet, rt*(1-r.wet) + wr*r.wet
}
