package link

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCounters struct {
	mu       sync.Mutex
	received int
	dropped  int
	peers    int
}

func (c *countingCounters) FrameReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received++
}

func (c *countingCounters) FrameDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped++
}

func (c *countingCounters) PeerConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers++
}

func (c *countingCounters) PeerDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers--
}

func (c *countingCounters) connected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers
}

func TestParseMessage(t *testing.T) {
	msg, ok, err := ParseMessage([]byte(`{"type":"frame","frame":"data:image/jpeg;base64,AA==","timestamp":42}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,AA==", msg.Frame)
	assert.Equal(t, int64(42), msg.Timestamp)

	_, ok, err = ParseMessage([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseMessage([]byte(`{"type":"frame"}`))
	assert.ErrorIs(t, err, ErrBadMessage)

	_, _, err = ParseMessage([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadMessage)
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.True(t, strings.HasPrefix(a, "pizza-"))
	assert.Len(t, a, len("pizza-")+9)
	assert.NotEqual(t, a, b)
}

func TestDeliver_RateLimited(t *testing.T) {
	var frames []string
	counters := &countingCounters{}
	r := NewReceiver(ReceiverConfig{MaxFPS: 0.001}, func(msg FrameMessage) {
		frames = append(frames, msg.Frame)
	}, counters, nil)

	for i := 0; i < 5; i++ {
		r.Deliver([]byte(`{"type":"frame","frame":"f"}`))
	}
	r.Deliver([]byte(`{"type":"hello"}`))
	r.Deliver([]byte(`garbage`))

	assert.Equal(t, []string{"f"}, frames)
	assert.Equal(t, 5, counters.received)
	assert.Equal(t, 4, counters.dropped)
}

func TestDeliver_Unlimited(t *testing.T) {
	n := 0
	r := NewReceiver(ReceiverConfig{}, func(FrameMessage) { n++ }, nil, nil)
	for i := 0; i < 20; i++ {
		r.Deliver([]byte(`{"type":"frame","frame":"f"}`))
	}
	assert.Equal(t, 20, n)
	assert.Zero(t, r.Peers())
	assert.NoError(t, r.Close())
}

type fakeAcceptor struct {
	offers []string
	err    error
}

func (a *fakeAcceptor) Accept(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	a.offers = append(a.offers, offer.SDP)
	if a.err != nil {
		return webrtc.SessionDescription{}, a.err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-for-" + offer.SDP}, nil
}

func dialSignaler(t *testing.T, s *Signaler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSignaler_OfferAnswer(t *testing.T) {
	acceptor := &fakeAcceptor{}
	s := NewSignaler("pizza-abc", acceptor, nil)
	conn := dialSignaler(t, s)

	require.NoError(t, conn.WriteJSON(SignalMessage{Type: SignalOffer, SessionID: "pizza-abc", SDP: "v=0"}))
	var reply SignalMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, SignalAnswer, reply.Type)
	assert.Equal(t, "answer-for-v=0", reply.SDP)
	assert.Equal(t, "pizza-abc", reply.SessionID)
	assert.Equal(t, []string{"v=0"}, acceptor.offers)
}

func TestSignaler_Rejects(t *testing.T) {
	acceptor := &fakeAcceptor{}
	s := NewSignaler("pizza-abc", acceptor, nil)
	conn := dialSignaler(t, s)

	cases := []SignalMessage{
		{Type: "hello", SessionID: "pizza-abc"},
		{Type: SignalOffer, SessionID: "pizza-other", SDP: "v=0"},
		{Type: SignalOffer, SessionID: "pizza-abc"},
	}
	for _, msg := range cases {
		require.NoError(t, conn.WriteJSON(msg))
		var reply SignalMessage
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, SignalError, reply.Type)
		assert.NotEmpty(t, reply.Error)
	}
	assert.Empty(t, acceptor.offers)
}

func TestSignaler_AcceptFailure(t *testing.T) {
	s := NewSignaler("pizza-abc", &fakeAcceptor{err: errors.New("ice failed")}, nil)
	conn := dialSignaler(t, s)

	require.NoError(t, conn.WriteJSON(SignalMessage{Type: SignalOffer, SessionID: "pizza-abc", SDP: "v=0"}))
	var reply SignalMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, SignalError, reply.Type)
	assert.Equal(t, "ice failed", reply.Error)
}

func TestPhoneURL(t *testing.T) {
	s := NewSignaler("pizza-abc", &fakeAcceptor{}, nil)
	assert.Equal(t, "https://example.org/?remote=pizza-abc", s.PhoneURL("https://example.org/"))
	assert.Equal(t, "pizza-abc", s.SessionID())
}

func TestAccept_InvalidOfferDropsPeer(t *testing.T) {
	r := NewReceiver(ReceiverConfig{}, func(FrameMessage) {}, nil, nil)
	_, err := r.Accept(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})
	assert.Error(t, err)
	assert.Zero(t, r.Peers())
}

func trackedPeer(t *testing.T, r *Receiver) (*webrtc.PeerConnection, func(webrtc.PeerConnectionState)) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	r.track(pc)
	return pc, r.handleConnectionState(pc)
}

func TestPeerGauge_FailedBeforeConnect(t *testing.T) {
	counters := &countingCounters{}
	r := NewReceiver(ReceiverConfig{}, func(FrameMessage) {}, counters, nil)

	_, setState := trackedPeer(t, r)
	setState(webrtc.PeerConnectionStateConnecting)
	setState(webrtc.PeerConnectionStateFailed)

	assert.Zero(t, counters.connected())
	assert.Zero(t, r.Peers())
}

func TestPeerGauge_ReconnectCountsOnce(t *testing.T) {
	counters := &countingCounters{}
	r := NewReceiver(ReceiverConfig{}, func(FrameMessage) {}, counters, nil)

	_, setState := trackedPeer(t, r)
	setState(webrtc.PeerConnectionStateConnected)
	setState(webrtc.PeerConnectionStateDisconnected)
	setState(webrtc.PeerConnectionStateConnected)
	assert.Equal(t, 1, counters.connected())
	assert.Equal(t, 1, r.Peers())

	setState(webrtc.PeerConnectionStateClosed)
	setState(webrtc.PeerConnectionStateClosed)
	assert.Zero(t, counters.connected())
	assert.Zero(t, r.Peers())
}

func TestClose_ReleasesConnectedPeers(t *testing.T) {
	counters := &countingCounters{}
	r := NewReceiver(ReceiverConfig{}, func(FrameMessage) {}, counters, nil)

	_, connect := trackedPeer(t, r)
	connect(webrtc.PeerConnectionStateConnected)
	trackedPeer(t, r)
	require.Equal(t, 1, counters.connected())

	assert.NoError(t, r.Close())
	assert.Zero(t, counters.connected())
	assert.Zero(t, r.Peers())
}
