package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the control, signaling and metrics endpoints
func NewRouter(h *Handlers, signaling http.Handler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/state", h.GetState).Methods("GET")
	r.HandleFunc("/start", h.Start).Methods("POST")
	r.HandleFunc("/volume", h.SetVolume).Methods("POST", "PUT")
	r.HandleFunc("/mute", h.ToggleMute).Methods("POST")
	r.HandleFunc("/stop", h.StopAll).Methods("POST")
	r.HandleFunc("/stop/{category}", h.Stop).Methods("POST")
	r.HandleFunc("/cue", h.Play).Methods("POST")

	if signaling != nil {
		r.Handle("/signal", signaling)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return r
}
