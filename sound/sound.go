package sound

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnsupportedAsset = errors.New("unsupported asset format")
	ErrAlreadyStarted   = errors.New("handle already started")
	ErrEmptyBuffer      = errors.New("decoded buffer is empty")
)

// SilenceDb is the gain treated as silence by every handle.
const SilenceDb = -100.0

// Device defines the interface for an audio output that plays loaded sources
type Device interface {
	// Activate opens the output device. Calling it again after success is a no-op.
	Activate(ctx context.Context) error

	// Load decodes the asset at the given path or URL into a playable source
	Load(ctx context.Context, asset string) (Source, error)
}

// Source is a decoded asset. Every call to NewHandle returns an
// independent, not yet started playback of it.
type Source interface {
	NewHandle() Handle
	Duration() time.Duration
}

// Handle is a single playback of a Source
type Handle interface {
	SetRate(rate float64)
	SetGain(db float64)

	// Start begins playback. A handle can only be started once.
	Start() error

	// Stop halts playback with a short fade. Ended subscribers are not notified.
	Stop()

	// Playing reports whether the handle is started and has neither ended nor been stopped.
	Playing() bool

	// OnEnded registers fn to run once when playback reaches the end of the source
	OnEnded(fn func()) Subscription
}

// Subscription is a registered callback that can be withdrawn
type Subscription interface {
	Cancel()
}
