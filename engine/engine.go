package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/d1nch8g/cuecam/sound"
)

// Cue binds a category to the asset played for it
type Cue struct {
	Category Category
	Asset    string
}

// EngineConfig holds the configuration for the cue engine
type EngineConfig struct {
	Cues       []Cue
	BaseVolume int
}

// MuteState is returned by ToggleMute
type MuteState struct {
	Muted  bool
	Volume int
}

// ActiveCue describes one playing cue
type ActiveCue struct {
	Category  Category
	Magnitude int
	Rate      float64
	GainDb    float64
}

// Snapshot is a read-only view of the engine state
type Snapshot struct {
	Started bool
	Ready   bool
	Muted   bool
	Volume  int
	Loaded  []Category
	Active  []ActiveCue
}

type playing struct {
	handle    sound.Handle
	ended     sound.Subscription
	magnitude int
	rate      float64
	gain      float64
}

// Engine plays at most one cue per category on a shared output device.
// Create one per process and hand it to every caller that needs it.
type Engine struct {
	config EngineConfig
	device sound.Device
	log    *zap.Logger

	startMu sync.Mutex
	ready   chan struct{}

	mu         sync.Mutex
	started    bool
	loaded     bool
	sources    map[Category]sound.Source
	active     map[Category]*playing
	baseVolume int
	muted      bool
}

// NewEngine creates a new cue engine instance
func NewEngine(config EngineConfig, device sound.Device, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		config:     config,
		device:     device,
		log:        log,
		ready:      make(chan struct{}),
		sources:    make(map[Category]sound.Source),
		active:     make(map[Category]*playing),
		baseVolume: clampVolume(config.BaseVolume),
	}
}

// Start activates the output device and loads every cue. It is a no-op once
// the device is active. After a failed activation a later call retries.
// A *LoadError reports the cues that could not be loaded; the rest play.
// Start blocks through loading, so when it returns after a successful
// activation Ready is already closed. Ready serves callers that did not
// make the call themselves.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		return nil
	}

	if err := e.device.Activate(ctx); err != nil {
		e.log.Error("failed to activate audio output", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrActivation, err)
	}

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	e.log.Info("audio output activated")

	return e.loadSources(ctx)
}

// Ready is closed once the loading phase of Start has finished, successfully or not.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

type loadResult struct {
	cue    Cue
	source sound.Source
	err    error
}

func (e *Engine) loadSources(ctx context.Context) error {
	e.log.Info("loading cue assets", zap.Int("count", len(e.config.Cues)))

	results := make([]loadResult, len(e.config.Cues))
	var wg sync.WaitGroup
	for i, cue := range e.config.Cues {
		wg.Add(1)
		go func(i int, cue Cue) {
			defer wg.Done()
			src, err := e.device.Load(ctx, cue.Asset)
			results[i] = loadResult{cue: cue, source: src, err: err}
		}(i, cue)
	}
	wg.Wait()

	var failures []LoadFailure

	e.mu.Lock()
	for _, res := range results {
		if res.err != nil {
			failures = append(failures, LoadFailure{
				Category: res.cue.Category,
				Asset:    res.cue.Asset,
				Err:      res.err,
			})
			continue
		}
		e.sources[res.cue.Category] = res.source
	}
	e.loaded = true
	e.mu.Unlock()
	close(e.ready)

	if len(failures) > 0 {
		err := &LoadError{Failures: failures}
		e.log.Error("cue assets failed to load", zap.Error(err))
		return err
	}

	e.log.Info("cue assets loaded")
	return nil
}

// Play starts the cue of the event's category and reports whether it did.
// The event is dropped when the engine is not started, the category is
// unknown or not loaded, the engine is muted, or the category is already playing.
func (e *Engine) Play(ev *Event) bool {
	if ev == nil || !ev.Category.Valid() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.muted {
		return false
	}
	src, ok := e.sources[ev.Category]
	if !ok {
		return false
	}
	if _, busy := e.active[ev.Category]; busy {
		return false
	}

	tier := TierFor(ev.Magnitude)
	fraction := float64(e.baseVolume) / 100 * tier.Multiplier
	gain := PercentToDb(fraction)

	h := src.NewHandle()
	h.SetRate(tier.Rate)
	h.SetGain(gain)

	p := &playing{
		handle:    h,
		magnitude: ev.Magnitude,
		rate:      tier.Rate,
		gain:      gain,
	}
	category := ev.Category
	p.ended = h.OnEnded(func() { e.finished(category, p) })

	if err := h.Start(); err != nil {
		p.ended.Cancel()
		e.log.Warn("failed to start cue", zap.String("category", string(category)), zap.Error(err))
		return false
	}
	e.active[category] = p

	e.log.Debug("cue started",
		zap.String("category", string(category)),
		zap.Int("magnitude", ev.Magnitude),
		zap.Int("volume_percent", int(fraction*100+0.5)),
		zap.Float64("gain_db", gain),
		zap.Float64("rate", tier.Rate),
		zap.Duration("length", src.Duration()),
	)
	return true
}

// finished runs when a handle reaches its end. The entry is only removed if it
// still belongs to that handle.
func (e *Engine) finished(category Category, p *playing) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.active[category]; ok && cur == p {
		delete(e.active, category)
		e.log.Debug("cue ended", zap.String("category", string(category)))
	}
}

// Stop halts the cue of a category. Stopping an idle category does nothing.
func (e *Engine) Stop(category Category) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(category)
}

func (e *Engine) stopLocked(category Category) {
	if !e.started {
		return
	}
	p, ok := e.active[category]
	if !ok {
		return
	}

	p.ended.Cancel()
	if p.handle.Playing() {
		p.handle.Stop()
	}
	delete(e.active, category)
	e.log.Debug("cue stopped", zap.String("category", string(category)))
}

// StopAll halts every playing cue
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return
	}
	categories := make([]Category, 0, len(e.active))
	for c := range e.active {
		categories = append(categories, c)
	}
	for _, c := range categories {
		e.stopLocked(c)
	}
	e.log.Debug("all cues stopped", zap.Int("count", len(categories)))
}

// SetVolume stores the base volume clamped to [0,100] and returns it.
// Playing cues are set to the new base volume without their magnitude
// multiplier. While muted they stay silent.
func (e *Engine) SetVolume(volume int) int {
	return e.AdjustVolume(volume).Volume
}

// AdjustVolume is SetVolume returning the mute flag read under the same lock
func (e *Engine) AdjustVolume(volume int) MuteState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.baseVolume = clampVolume(volume)
	if !e.muted {
		e.applyGainLocked(PercentToDb(float64(e.baseVolume) / 100))
	}

	e.log.Info("volume set", zap.Int("volume", e.baseVolume))
	return MuteState{Muted: e.muted, Volume: e.baseVolume}
}

// ToggleMute flips the mute flag. Muting silences playing cues without
// stopping them; unmuting restores them to the base volume.
func (e *Engine) ToggleMute() MuteState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = !e.muted
	if e.muted {
		e.applyGainLocked(SilenceDb)
	} else {
		e.applyGainLocked(PercentToDb(float64(e.baseVolume) / 100))
	}

	e.log.Info("mute toggled", zap.Bool("muted", e.muted))
	return MuteState{Muted: e.muted, Volume: e.baseVolume}
}

func (e *Engine) applyGainLocked(gain float64) {
	for _, p := range e.active {
		if !p.handle.Playing() {
			continue
		}
		p.handle.SetGain(gain)
		p.gain = gain
	}
}

// State returns a snapshot of the engine for logging and inspection
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Started: e.started,
		Ready:   e.loaded,
		Muted:   e.muted,
		Volume:  e.baseVolume,
	}
	for c := range e.sources {
		s.Loaded = append(s.Loaded, c)
	}
	for c, p := range e.active {
		s.Active = append(s.Active, ActiveCue{
			Category:  c,
			Magnitude: p.magnitude,
			Rate:      p.rate,
			GainDb:    p.gain,
		})
	}
	sort.Slice(s.Loaded, func(i, j int) bool { return s.Loaded[i] < s.Loaded[j] })
	sort.Slice(s.Active, func(i, j int) bool { return s.Active[i].Category < s.Active[j].Category })
	return s
}

// IsActive reports whether a cue of the category is playing
func (e *Engine) IsActive(category Category) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[category]
	return ok
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
