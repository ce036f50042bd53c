package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/d1nch8g/cuecam/engine"
)

// Controller is the part of the cue engine exposed over HTTP
type Controller interface {
	Start(ctx context.Context) error
	Play(ev *engine.Event) bool
	Stop(category engine.Category)
	StopAll()
	AdjustVolume(volume int) engine.MuteState
	ToggleMute() engine.MuteState
	State() engine.Snapshot
}

type Handlers struct {
	ctrl Controller
	log  *zap.Logger
}

func NewHandlers(ctrl Controller, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{ctrl: ctrl, log: log}
}

type VolumeRequest struct {
	Volume *int `json:"volume"`
}

type CueRequest struct {
	Category string `json:"category"`
	Size     *int   `json:"size"`
}

type StartResponse struct {
	Started bool     `json:"started"`
	Failed  []string `json:"failed,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StateResponse struct {
	Started bool        `json:"started"`
	Ready   bool        `json:"ready"`
	Muted   bool        `json:"muted"`
	Volume  int         `json:"volume"`
	Loaded  []string    `json:"loaded"`
	Active  []ActiveCue `json:"active"`
}

type ActiveCue struct {
	Category string  `json:"category"`
	Size     int     `json:"size"`
	Rate     float64 `json:"rate"`
	GainDb   float64 `json:"gain_db"`
}

type MuteResponse struct {
	Muted  bool `json:"muted"`
	Volume int  `json:"volume"`
}

func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	s := h.ctrl.State()
	resp := StateResponse{
		Started: s.Started,
		Ready:   s.Ready,
		Muted:   s.Muted,
		Volume:  s.Volume,
		Loaded:  make([]string, 0, len(s.Loaded)),
		Active:  make([]ActiveCue, 0, len(s.Active)),
	}
	for _, c := range s.Loaded {
		resp.Loaded = append(resp.Loaded, string(c))
	}
	for _, a := range s.Active {
		resp.Active = append(resp.Active, ActiveCue{
			Category: string(a.Category),
			Size:     a.Magnitude,
			Rate:     a.Rate,
			GainDb:   a.GainDb,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetVolume accepts {"volume": 0..100}; out of range values are clamped
func (h *Handlers) SetVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		h.log.Debug("invalid volume request", zap.Error(err))
		writeError(w, http.StatusBadRequest, `expected {"volume": <0-100>}`)
		return
	}
	state := h.ctrl.AdjustVolume(*req.Volume)
	writeJSON(w, http.StatusOK, MuteResponse{Muted: state.Muted, Volume: state.Volume})
}

func (h *Handlers) ToggleMute(w http.ResponseWriter, r *http.Request) {
	state := h.ctrl.ToggleMute()
	writeJSON(w, http.StatusOK, MuteResponse{Muted: state.Muted, Volume: state.Volume})
}

func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	category := engine.Category(mux.Vars(r)["category"])
	if !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category "+string(category))
		return
	}
	h.ctrl.Stop(category)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) StopAll(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StopAll()
	w.WriteHeader(http.StatusNoContent)
}

// Play triggers a cue by hand, the same way a detected frame does
func (h *Handlers) Play(w http.ResponseWriter, r *http.Request) {
	var req CueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" || req.Size == nil {
		h.log.Debug("invalid cue request", zap.Error(err))
		writeError(w, http.StatusBadRequest, `expected {"category": <color>, "size": <5|10|15>}`)
		return
	}
	category := engine.Category(req.Category)
	if !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category "+req.Category)
		return
	}
	played := h.ctrl.Play(&engine.Event{Category: category, Magnitude: *req.Size})
	writeJSON(w, http.StatusOK, map[string]bool{"played": played})
}

// Start retries audio activation. Cues that fail to load are listed but do
// not fail the request.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	err := h.ctrl.Start(r.Context())

	var loadErr *engine.LoadError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StartResponse{Started: true})
	case errors.As(err, &loadErr):
		resp := StartResponse{Started: true}
		for _, f := range loadErr.Failures {
			resp.Failed = append(resp.Failed, string(f.Category))
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		h.log.Warn("audio activation failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
