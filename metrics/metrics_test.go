package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.FrameReceived()
	c.FrameReceived()
	c.FrameDropped()
	c.FrameScanned()
	c.ScanFailed()
	c.CuePlayed("red")
	c.CuePlayed("red")
	c.CuePlayed("blue")
	c.PeerConnected()
	c.PeerConnected()
	c.PeerDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesScanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scanErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cuesPlayed.WithLabelValues("red")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cuesPlayed.WithLabelValues("blue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.peers))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.CuePlayed("green")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cuecam_cues_played_total{category="green"} 1`)
	assert.Contains(t, string(body), "cuecam_frames_received_total 0")
}
