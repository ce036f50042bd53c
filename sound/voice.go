package sound

import "time"

// Sample is a decoded asset bound to a mixer
type Sample struct {
	mixer *Mixer
	buf   *Buffer
}

func (s *Sample) NewHandle() Handle {
	return &voice{
		mixer:       s.mixer,
		buf:         s.buf,
		rate:        1,
		gain:        1,
		subscribers: make(map[int]func()),
	}
}

func (s *Sample) Duration() time.Duration {
	return s.buf.Duration()
}

// voice is one playback of a Sample. Every field is guarded by mixer.mu.
type voice struct {
	mixer *Mixer
	buf   *Buffer

	rate float64
	gain float32

	state      voiceState
	reachedEnd bool
	pos        float64
	elapsed    int
	release    int

	subscribers map[int]func()
	nextSub     int
}

var _ Handle = (*voice)(nil)

func (v *voice) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	v.mixer.mu.Lock()
	v.rate = rate
	v.mixer.mu.Unlock()
}

func (v *voice) SetGain(db float64) {
	v.mixer.mu.Lock()
	v.gain = dbToAmplitude(db)
	v.mixer.mu.Unlock()
}

func (v *voice) Start() error {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()

	if v.state != voiceIdle {
		return ErrAlreadyStarted
	}
	v.state = voicePlaying
	v.mixer.voices = append(v.mixer.voices, v)
	return nil
}

func (v *voice) Stop() {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()

	switch v.state {
	case voiceIdle:
		v.state = voiceDone
	case voicePlaying:
		v.state = voiceReleasing
		v.release = v.mixer.fadeFrames
		if v.release == 0 {
			v.state = voiceDone
		}
	}
}

func (v *voice) Playing() bool {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	return v.state == voicePlaying
}

func (v *voice) OnEnded(fn func()) Subscription {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()

	id := v.nextSub
	v.nextSub++
	v.subscribers[id] = fn
	return &subscription{voice: v, id: id}
}

func (v *voice) drainSubscribers() []func() {
	fns := make([]func(), 0, len(v.subscribers))
	for id, fn := range v.subscribers {
		fns = append(fns, fn)
		delete(v.subscribers, id)
	}
	return fns
}

// next renders one frame. Caller holds mixer.mu.
func (v *voice) next(fadeFrames int) (float32, float32) {
	switch v.state {
	case voicePlaying, voiceReleasing:
	default:
		return 0, 0
	}

	frames := v.buf.Frames()
	step := v.rate * float64(v.buf.SampleRate) / float64(v.mixer.sampleRate)
	if int(v.pos) >= frames-1 {
		v.finish()
		return 0, 0
	}

	l, r := v.sampleAt(v.pos)
	env := float32(1)
	if fadeFrames > 0 {
		if v.elapsed < fadeFrames {
			env = float32(v.elapsed) / float32(fadeFrames)
		}
		remaining := (float64(frames-1) - v.pos) / step
		if remaining < float64(fadeFrames) {
			env = min(env, float32(remaining/float64(fadeFrames)))
		}
		if v.state == voiceReleasing {
			env = min(env, float32(v.release)/float32(fadeFrames))
			v.release--
			if v.release <= 0 {
				v.state = voiceDone
			}
		}
	}

	v.pos += step
	v.elapsed++
	amp := env * v.gain
	return l * amp, r * amp
}

func (v *voice) finish() {
	if v.state == voicePlaying {
		v.reachedEnd = true
	}
	v.state = voiceDone
}

// sampleAt reads the buffer with linear interpolation
func (v *voice) sampleAt(pos float64) (float32, float32) {
	i := int(pos)
	frac := float32(pos - float64(i))
	l := v.buf.Left[i] + (v.buf.Left[i+1]-v.buf.Left[i])*frac
	r := v.buf.Right[i] + (v.buf.Right[i+1]-v.buf.Right[i])*frac
	return l, r
}

type subscription struct {
	voice *voice
	id    int
}

func (s *subscription) Cancel() {
	s.voice.mixer.mu.Lock()
	delete(s.voice.subscribers, s.id)
	s.voice.mixer.mu.Unlock()
}
