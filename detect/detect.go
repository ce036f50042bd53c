// Package detect scans camera frames for dominant colors and turns them
// into cue events.
package detect

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync/atomic"

	"github.com/d1nch8g/cuecam/engine"
)

var (
	ErrNotDataURL = errors.New("frame is not a base64 data URL")
	ErrEmptyFrame = errors.New("frame has no pixels")
)

// Share thresholds for the size levels
const (
	LargeShare  = 0.30
	MediumShare = 0.15
	SmallShare  = 0.05
)

// Report is the result of scanning one frame
type Report struct {
	Frame      uint64
	Width      int
	Height     int
	Brightness int
	Shares     map[engine.Category]float64
}

// Scanner counts frames and classifies their pixels
type Scanner struct {
	frames atomic.Uint64
}

func NewScanner() *Scanner {
	return &Scanner{}
}

// Frames returns the number of frames scanned so far
func (s *Scanner) Frames() uint64 {
	return s.frames.Load()
}

// Scan decodes a data URL frame such as "data:image/jpeg;base64,..." and scans it
func (s *Scanner) Scan(dataURL string) (Report, error) {
	img, err := DecodeDataURL(dataURL)
	if err != nil {
		return Report{}, err
	}
	return s.ScanImage(img)
}

func (s *Scanner) ScanImage(img image.Image) (Report, error) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return Report{}, ErrEmptyFrame
	}

	var brightness float64
	counts := make(map[engine.Category]int, len(engine.Categories))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r32, g32, b32, _ := img.At(x, y).RGBA()
			r, g, bl := int(r32>>8), int(g32>>8), int(b32>>8)
			brightness += float64(r+g+bl) / 3
			if c, ok := classify(r, g, bl); ok {
				counts[c]++
			}
		}
	}

	report := Report{
		Frame:      s.frames.Add(1),
		Width:      b.Dx(),
		Height:     b.Dy(),
		Brightness: int(brightness/float64(total) + 0.5),
		Shares:     make(map[engine.Category]float64, len(engine.Categories)),
	}
	for _, c := range engine.Categories {
		report.Shares[c] = float64(counts[c]) / float64(total)
	}
	return report, nil
}

func classify(r, g, b int) (engine.Category, bool) {
	switch {
	case r > 150 && g < 100 && b < 100:
		return engine.Red, true
	case g > 150 && r < 100 && b < 100:
		return engine.Green, true
	case b > 150 && r < 100 && g < 100:
		return engine.Blue, true
	case r > 150 && g > 150 && b < 100:
		return engine.Yellow, true
	}
	return "", false
}

// MagnitudeFor maps a pixel share to a size level, or 0 when the share is too small
func MagnitudeFor(share float64) int {
	switch {
	case share >= LargeShare:
		return engine.Large
	case share >= MediumShare:
		return engine.Medium
	case share >= SmallShare:
		return engine.Small
	}
	return 0
}

// Events returns one event per category whose share reaches a size level
func (r Report) Events() []engine.Event {
	var events []engine.Event
	for _, c := range engine.Categories {
		if m := MagnitudeFor(r.Shares[c]); m > 0 {
			events = append(events, engine.Event{Category: c, Magnitude: m})
		}
	}
	return events
}

func (r Report) String() string {
	return fmt.Sprintf("frame #%d brightness %d red %d%% green %d%% blue %d%% yellow %d%%",
		r.Frame, r.Brightness,
		percent(r.Shares[engine.Red]), percent(r.Shares[engine.Green]),
		percent(r.Shares[engine.Blue]), percent(r.Shares[engine.Yellow]),
	)
}

func percent(share float64) int {
	return int(share*100 + 0.5)
}

// DecodeDataURL decodes a base64 image data URL
func DecodeDataURL(dataURL string) (image.Image, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURL
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame payload: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame image: %w", err)
	}
	return img, nil
}
