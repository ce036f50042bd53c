package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/d1nch8g/cuecam/sound"
)

type fakeDevice struct {
	mu          sync.Mutex
	activateErr error
	activations int
	loadErrs    map[string]error
	sources     map[string]*fakeSource
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		loadErrs: make(map[string]error),
		sources:  make(map[string]*fakeSource),
	}
}

func (d *fakeDevice) Activate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activations++
	return d.activateErr
}

func (d *fakeDevice) Load(ctx context.Context, asset string) (sound.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.loadErrs[asset]; err != nil {
		return nil, err
	}
	src := &fakeSource{asset: asset}
	d.sources[asset] = src
	return src, nil
}

func (d *fakeDevice) source(asset string) *fakeSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sources[asset]
}

type fakeSource struct {
	mu       sync.Mutex
	asset    string
	handles  []*fakeHandle
	startErr error
}

func (s *fakeSource) failNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

func (s *fakeSource) NewHandle() sound.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &fakeHandle{rate: 1, subs: make(map[int]func()), startErr: s.startErr}
	s.startErr = nil
	s.handles = append(s.handles, h)
	return h
}

func (s *fakeSource) Duration() time.Duration {
	return time.Second
}

func (s *fakeSource) last() *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

type fakeHandle struct {
	mu       sync.Mutex
	rate     float64
	gain     float64
	started  bool
	stopped  bool
	ended    bool
	startErr error
	subs     map[int]func()
	next     int
}

func (h *fakeHandle) SetRate(rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rate = rate
}

func (h *fakeHandle) SetGain(db float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gain = db
}

func (h *fakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	if h.started {
		return errors.New("already started")
	}
	h.started = true
	return nil
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

func (h *fakeHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.stopped && !h.ended
}

func (h *fakeHandle) OnEnded(fn func()) sound.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.subs[id] = fn
	return &fakeSub{h: h, id: id}
}

// end simulates natural completion and runs subscribers on the caller's goroutine
func (h *fakeHandle) end() {
	h.mu.Lock()
	h.ended = true
	fns := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *fakeHandle) snapshot() (rate, gain float64, stopped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate, h.gain, h.stopped
}

func (h *fakeHandle) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type fakeSub struct {
	h  *fakeHandle
	id int
}

func (s *fakeSub) Cancel() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	delete(s.h.subs, s.id)
}
