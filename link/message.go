package link

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrBadMessage = errors.New("malformed message")

const TypeFrame = "frame"

// FrameMessage is what the phone sends over the data channel for every captured frame
type FrameMessage struct {
	Type      string `json:"type"`
	Frame     string `json:"frame"`
	Timestamp int64  `json:"timestamp"`
}

// ParseMessage decodes a data channel message. ok is false for well-formed
// messages of other types, which receivers skip.
func ParseMessage(data []byte) (msg FrameMessage, ok bool, err error) {
	if err := json.Unmarshal(data, &msg); err != nil {
		return FrameMessage{}, false, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.Type != TypeFrame {
		return msg, false, nil
	}
	if msg.Frame == "" {
		return FrameMessage{}, false, fmt.Errorf("%w: empty frame", ErrBadMessage)
	}
	return msg, true, nil
}

// SignalMessage is exchanged over the signaling websocket
type SignalMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	SDP       string `json:"sdp,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	SignalOffer  = "offer"
	SignalAnswer = "answer"
	SignalError  = "error"
)

// NewSessionID returns an id of the form "pizza-xxxxxxxxx"
func NewSessionID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "pizza-" + id[:9]
}
