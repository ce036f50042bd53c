package link

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FrameHandler receives every frame that passes the rate limit
type FrameHandler func(msg FrameMessage)

// Counters is notified about frames and peers
type Counters interface {
	FrameReceived()
	FrameDropped()
	PeerConnected()
	PeerDisconnected()
}

type nopCounters struct{}

func (nopCounters) FrameReceived()    {}
func (nopCounters) FrameDropped()     {}
func (nopCounters) PeerConnected()    {}
func (nopCounters) PeerDisconnected() {}

type ReceiverConfig struct {
	ICEServers []string
	MaxFPS     float64
}

// Receiver answers offers from phones and reads frames from their data channels
type Receiver struct {
	config   ReceiverConfig
	api      *webrtc.API
	handler  FrameHandler
	counters Counters
	limiter  *rate.Limiter
	log      *zap.Logger

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]*peer
}

type peer struct {
	connected bool
}

func NewReceiver(config ReceiverConfig, handler FrameHandler, counters Counters, log *zap.Logger) *Receiver {
	if counters == nil {
		counters = nopCounters{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if config.MaxFPS > 0 {
		limit = rate.Limit(config.MaxFPS)
	}

	return &Receiver{
		config:   config,
		api:      webrtc.NewAPI(),
		handler:  handler,
		counters: counters,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		peers:    make(map[*webrtc.PeerConnection]*peer),
	}
}

func (r *Receiver) iceServers() []webrtc.ICEServer {
	if len(r.config.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: r.config.ICEServers}}
}

// Accept applies a remote offer and returns the answer once ICE gathering is complete
func (r *Receiver) Accept(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	pc, err := r.api.NewPeerConnection(webrtc.Configuration{ICEServers: r.iceServers()})
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create peer connection: %w", err)
	}

	r.track(pc)
	pc.OnConnectionStateChange(r.handleConnectionState(pc))
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		r.log.Info("data channel opened", zap.String("label", dc.Label()))
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			r.Deliver(msg.Data)
		})
		dc.OnClose(func() {
			r.log.Info("data channel closed", zap.String("label", dc.Label()))
		})
	})

	answer, err := r.negotiate(ctx, pc, offer)
	if err != nil {
		r.drop(pc)
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (r *Receiver) negotiate(ctx context.Context, pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
	return *pc.LocalDescription(), nil
}

func (r *Receiver) handleConnectionState(pc *webrtc.PeerConnection) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		r.log.Info("peer connection state changed", zap.String("state", state.String()))

		switch state {
		case webrtc.PeerConnectionStateConnected:
			if r.markConnected(pc) {
				r.counters.PeerConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if r.drop(pc) {
				r.counters.PeerDisconnected()
			}
		}
	}
}

func (r *Receiver) track(pc *webrtc.PeerConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[pc] = &peer{}
}

// markConnected reports whether this is the peer's first transition into Connected.
// A peer recovering from Disconnected is not counted again.
func (r *Receiver) markConnected(pc *webrtc.PeerConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[pc]
	if !ok || p.connected {
		return false
	}
	p.connected = true
	return true
}

// drop forgets and closes a peer connection. It reports whether the peer had
// been counted as connected.
func (r *Receiver) drop(pc *webrtc.PeerConnection) bool {
	r.mu.Lock()
	p, ok := r.peers[pc]
	delete(r.peers, pc)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := pc.Close(); err != nil {
		r.log.Warn("failed to close peer connection", zap.Error(err))
	}
	return p.connected
}

// Deliver handles one raw data channel message
func (r *Receiver) Deliver(data []byte) {
	msg, ok, err := ParseMessage(data)
	if err != nil {
		r.log.Warn("dropping message", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	r.counters.FrameReceived()
	if !r.limiter.Allow() {
		r.counters.FrameDropped()
		return
	}
	r.handler(msg)
}

// Peers returns the number of open peer connections
func (r *Receiver) Peers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Close closes every peer connection
func (r *Receiver) Close() error {
	r.mu.Lock()
	peers := r.peers
	r.peers = make(map[*webrtc.PeerConnection]*peer)
	r.mu.Unlock()

	var err error
	for pc, p := range peers {
		if p.connected {
			r.counters.PeerDisconnected()
		}
		if cerr := pc.Close(); cerr != nil && !errors.Is(cerr, webrtc.ErrConnectionClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
