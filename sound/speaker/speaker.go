// Package speaker plays the sound mixer on the default portaudio output device.
package speaker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/d1nch8g/cuecam/sound"
)

type PlayerConfig struct {
	SampleRate      float64
	FramesPerBuffer int
	OutputChannels  int
	Fade            time.Duration
	Reverb          sound.ReverbConfig
}

func GetDefaultConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:      44100,
		FramesPerBuffer: 1024,
		OutputChannels:  2,
		Fade:            500 * time.Millisecond,
		Reverb: sound.ReverbConfig{
			Decay: 2500 * time.Millisecond,
			Wet:   0.3,
		},
	}
}

// Player is a sound.Device that renders its mixer to the default output stream
type Player struct {
	config PlayerConfig
	mixer  *sound.Mixer
	client *http.Client
	log    *zap.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

var _ sound.Device = (*Player)(nil)

func NewPlayer(config PlayerConfig, log *zap.Logger) *Player {
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{
		config: config,
		mixer:  sound.NewMixer(int(config.SampleRate), config.Fade, config.Reverb),
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (p *Player) Mixer() *sound.Mixer {
	return p.mixer
}

func (p *Player) Activate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		0,
		p.config.OutputChannels,
		p.config.SampleRate,
		p.config.FramesPerBuffer,
		p.mixer.Render,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.stream = stream
	p.log.Info("audio output started",
		zap.Float64("sample_rate", p.config.SampleRate),
		zap.Int("channels", p.config.OutputChannels),
	)
	return nil
}

// Load decodes an mp3 asset from a local path or an http(s) URL into the mixer
func (p *Player) Load(ctx context.Context, asset string) (sound.Source, error) {
	buf, err := sound.LoadAsset(ctx, p.client, asset)
	if err != nil {
		return nil, err
	}

	p.log.Debug("asset decoded",
		zap.String("asset", asset),
		zap.Duration("duration", buf.Duration()),
		zap.Int("sample_rate", buf.SampleRate),
	)
	return p.mixer.NewSample(buf), nil
}

// Close stops the stream and terminates portaudio
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	var err error
	err = multierr.Append(err, p.stream.Stop())
	err = multierr.Append(err, p.stream.Close())
	err = multierr.Append(err, portaudio.Terminate())
	p.stream = nil
	return err
}
