package link

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the phone page is served from another origin
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Acceptor answers a session offer
type Acceptor interface {
	Accept(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// Signaler is the websocket endpoint the phone uses to exchange its offer for an answer
type Signaler struct {
	sessionID     string
	acceptor      Acceptor
	answerTimeout time.Duration
	readTimeout   time.Duration
	log           *zap.Logger
}

func NewSignaler(sessionID string, acceptor Acceptor, log *zap.Logger) *Signaler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Signaler{
		sessionID:     sessionID,
		acceptor:      acceptor,
		answerTimeout: 15 * time.Second,
		readTimeout:   60 * time.Second,
		log:           log,
	}
}

func (s *Signaler) SessionID() string {
	return s.sessionID
}

// PhoneURL returns the page address announced to the phone
func (s *Signaler) PhoneURL(base string) string {
	return base + "?remote=" + s.sessionID
}

func (s *Signaler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("phone connected to signaling", zap.String("remote_addr", r.RemoteAddr))

	for {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		var msg SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("signaling read failed", zap.Error(err))
			}
			return
		}

		reply := s.handle(r.Context(), msg)
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			s.log.Warn("signaling write failed", zap.Error(err))
			return
		}
	}
}

func (s *Signaler) handle(ctx context.Context, msg SignalMessage) SignalMessage {
	if msg.Type != SignalOffer {
		return SignalMessage{Type: SignalError, Error: "unsupported message type " + msg.Type}
	}
	if msg.SessionID != s.sessionID {
		return SignalMessage{Type: SignalError, Error: "unknown session"}
	}
	if msg.SDP == "" {
		return SignalMessage{Type: SignalError, Error: "empty offer"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.answerTimeout)
	defer cancel()

	answer, err := s.acceptor.Accept(ctx, webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  msg.SDP,
	})
	if err != nil {
		s.log.Error("failed to answer offer", zap.Error(err))
		return SignalMessage{Type: SignalError, SessionID: s.sessionID, Error: err.Error()}
	}

	s.log.Info("offer answered", zap.String("session_id", s.sessionID))
	return SignalMessage{Type: SignalAnswer, SessionID: s.sessionID, SDP: answer.SDP}
}
