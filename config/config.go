package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

var categories = []string{"red", "green", "blue", "yellow"}

type AudioConfig struct {
	SampleRate      float64
	FramesPerBuffer int
	OutputChannels  int
	Fade            time.Duration
	ReverbDecay     time.Duration
	ReverbWet       float64
}

type LogConfig struct {
	Level  string
	Format string
}

// CueConfig binds a color category to an mp3 path or URL
type CueConfig struct {
	Category string `yaml:"category"`
	Asset    string `yaml:"asset"`
}

type Config struct {
	ListenAddr string
	PublicURL  string
	BaseVolume int
	MaxFPS     float64
	ICEServers []string
	Log        LogConfig
	Audio      AudioConfig
	Cues       []CueConfig
}

func DefaultConfig() *Config {
	cfg := &Config{
		ListenAddr: ":8080",
		PublicURL:  "http://localhost:8080/",
		BaseVolume: 80,
		MaxFPS:     10,
		ICEServers: []string{
			"stun:stun.l.google.com:19302",
			"stun:global.stun.twilio.com:3478",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Audio: AudioConfig{
			SampleRate:      44100,
			FramesPerBuffer: 1024,
			OutputChannels:  2,
			Fade:            500 * time.Millisecond,
			ReverbDecay:     2500 * time.Millisecond,
			ReverbWet:       0.3,
		},
	}
	for _, c := range categories {
		cfg.Cues = append(cfg.Cues, CueConfig{Category: c, Asset: "sounds/" + c + ".mp3"})
	}
	return cfg
}

// LoadConfig reads .env when present, then the environment, then the optional CUES_FILE
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()
	var err error

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.PublicURL = getEnv("PUBLIC_URL", cfg.PublicURL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if cfg.BaseVolume, err = getInt("BASE_VOLUME", cfg.BaseVolume); err != nil {
		return nil, err
	}
	if cfg.MaxFPS, err = getFloat("MAX_FPS", cfg.MaxFPS); err != nil {
		return nil, err
	}
	if v := os.Getenv("ICE_SERVERS"); v != "" {
		cfg.ICEServers = splitList(v)
	}

	if cfg.Audio.SampleRate, err = getFloat("SAMPLE_RATE", cfg.Audio.SampleRate); err != nil {
		return nil, err
	}
	if cfg.Audio.FramesPerBuffer, err = getInt("FRAMES_PER_BUFFER", cfg.Audio.FramesPerBuffer); err != nil {
		return nil, err
	}
	if cfg.Audio.OutputChannels, err = getInt("OUTPUT_CHANNELS", cfg.Audio.OutputChannels); err != nil {
		return nil, err
	}
	if cfg.Audio.Fade, err = getDuration("FADE", cfg.Audio.Fade); err != nil {
		return nil, err
	}
	if cfg.Audio.ReverbDecay, err = getDuration("REVERB_DECAY", cfg.Audio.ReverbDecay); err != nil {
		return nil, err
	}
	if cfg.Audio.ReverbWet, err = getFloat("REVERB_WET", cfg.Audio.ReverbWet); err != nil {
		return nil, err
	}

	for i, cue := range cfg.Cues {
		cfg.Cues[i].Asset = getEnv("SOUND_"+strings.ToUpper(cue.Category), cue.Asset)
	}

	if path := os.Getenv("CUES_FILE"); path != "" {
		cues, err := LoadCues(path)
		if err != nil {
			return nil, err
		}
		cfg.Cues = cues
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type cuesFile struct {
	Cues []CueConfig `yaml:"cues"`
}

// LoadCues reads a YAML cue table:
//
//	cues:
//	  - category: red
//	    asset: sounds/alarm.mp3
func LoadCues(path string) ([]CueConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cues file: %w", err)
	}

	var f cuesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse cues file %s: %w", path, err)
	}
	return f.Cues, nil
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	if c.BaseVolume < 0 || c.BaseVolume > 100 {
		return fmt.Errorf("BASE_VOLUME must be within [0,100], got %d", c.BaseVolume)
	}
	if c.MaxFPS < 0 {
		return fmt.Errorf("MAX_FPS must be >= 0")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be > 0")
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("FRAMES_PER_BUFFER must be > 0")
	}
	if c.Audio.OutputChannels < 1 {
		return fmt.Errorf("OUTPUT_CHANNELS must be >= 1")
	}
	if c.Audio.Fade < 0 || c.Audio.ReverbDecay < 0 {
		return fmt.Errorf("FADE and REVERB_DECAY must not be negative")
	}
	if c.Audio.ReverbWet < 0 || c.Audio.ReverbWet > 1 {
		return fmt.Errorf("REVERB_WET must be within [0,1]")
	}

	seen := make(map[string]bool, len(c.Cues))
	for _, cue := range c.Cues {
		if !knownCategory(cue.Category) {
			return fmt.Errorf("unknown cue category %q", cue.Category)
		}
		if seen[cue.Category] {
			return fmt.Errorf("cue category %q configured twice", cue.Category)
		}
		if cue.Asset == "" {
			return fmt.Errorf("cue %q has no asset", cue.Category)
		}
		seen[cue.Category] = true
	}
	return nil
}

func knownCategory(name string) bool {
	for _, c := range categories {
		if c == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// getDuration accepts Go durations ("500ms") or plain seconds ("2.5")
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
