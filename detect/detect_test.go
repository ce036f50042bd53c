package detect

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1nch8g/cuecam/engine"
)

// stripes paints the first n columns of each color in order and leaves the rest black
func stripes(width, height int, cols map[color.RGBA]int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, c := range []color.RGBA{
		{R: 220, G: 20, B: 20, A: 255},
		{R: 20, G: 220, B: 20, A: 255},
		{R: 20, G: 20, B: 220, A: 255},
		{R: 220, G: 220, B: 20, A: 255},
	} {
		for i := 0; i < cols[c]; i++ {
			for y := 0; y < height; y++ {
				img.SetRGBA(x, y, c)
			}
			x++
		}
	}
	for ; x < width; x++ {
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	return img
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

var (
	red    = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	green  = color.RGBA{R: 20, G: 220, B: 20, A: 255}
	blue   = color.RGBA{R: 20, G: 20, B: 220, A: 255}
	yellow = color.RGBA{R: 220, G: 220, B: 20, A: 255}
)

func TestScan_Shares(t *testing.T) {
	img := stripes(100, 10, map[color.RGBA]int{red: 40, green: 20, blue: 6, yellow: 2})
	s := NewScanner()

	report, err := s.Scan(pngDataURL(t, img))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Frame)
	assert.Equal(t, 100, report.Width)
	assert.Equal(t, 10, report.Height)
	assert.InDelta(t, 0.40, report.Shares[engine.Red], 1e-9)
	assert.InDelta(t, 0.20, report.Shares[engine.Green], 1e-9)
	assert.InDelta(t, 0.06, report.Shares[engine.Blue], 1e-9)
	assert.InDelta(t, 0.02, report.Shares[engine.Yellow], 1e-9)

	assert.Equal(t, []engine.Event{
		{Category: engine.Red, Magnitude: engine.Large},
		{Category: engine.Green, Magnitude: engine.Medium},
		{Category: engine.Blue, Magnitude: engine.Small},
	}, report.Events())
	assert.Contains(t, report.String(), "red 40%")
}

func TestScan_Brightness(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 120, B: 150, A: 255})
		}
	}
	report, err := NewScanner().ScanImage(img)
	require.NoError(t, err)
	assert.Equal(t, 120, report.Brightness)
	assert.Empty(t, report.Events())
}

func TestScan_CountsFrames(t *testing.T) {
	s := NewScanner()
	img := stripes(10, 10, nil)
	for i := 0; i < 3; i++ {
		_, err := s.ScanImage(img)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), s.Frames())
}

func TestScan_Errors(t *testing.T) {
	s := NewScanner()

	_, err := s.Scan("hello")
	assert.ErrorIs(t, err, ErrNotDataURL)

	_, err = s.Scan("data:text/plain;base64,aGk=")
	assert.ErrorIs(t, err, ErrNotDataURL)

	_, err = s.Scan("data:image/jpeg;base64,***")
	assert.Error(t, err)

	_, err = s.Scan("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("nope")))
	assert.Error(t, err)

	_, err = s.ScanImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrEmptyFrame)
	assert.Zero(t, s.Frames())
}

func TestMagnitudeFor(t *testing.T) {
	cases := []struct {
		share float64
		want  int
	}{
		{0, 0},
		{0.049, 0},
		{0.05, engine.Small},
		{0.149, engine.Small},
		{0.15, engine.Medium},
		{0.30, engine.Large},
		{1, engine.Large},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MagnitudeFor(tc.share), "share %v", tc.share)
	}
}

func TestClassify(t *testing.T) {
	c, ok := classify(200, 50, 50)
	assert.True(t, ok)
	assert.Equal(t, engine.Red, c)

	c, ok = classify(200, 200, 50)
	assert.True(t, ok)
	assert.Equal(t, engine.Yellow, c)

	_, ok = classify(200, 200, 200)
	assert.False(t, ok)

	_, ok = classify(150, 50, 50)
	assert.False(t, ok)
}
