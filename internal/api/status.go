package api

import (
	"net/http"

	"github.com/aputting/scribe-engine/internal/pipeline"
	"github.com/aputting/scribe-engine/internal/transcribe"
)

type StatusResponse struct {
	Backends       []transcribe.Status `json:"backends"`
	Preferred      string              `json:"preferred_backend,omitempty"`
	Failover       bool                `json:"failover_enabled"`
	ProfilesLoaded int                 `json:"profiles_loaded"`
	InFlight       int                 `json:"in_flight"`
}

type StatusHandler struct {
	pipe *pipeline.Pipeline
}

func NewStatusHandler(pipe *pipeline.Pipeline) *StatusHandler {
	return &StatusHandler{pipe: pipe}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := h.pipe.Router()
	WriteJSON(w, http.StatusOK, StatusResponse{
		Backends:       router.Statuses(r.Context()),
		Preferred:      router.Preferred(),
		Failover:       router.FailoverEnabled(),
		ProfilesLoaded: h.pipe.ProfilesLoaded(),
		InFlight:       h.pipe.InFlight(),
	})
}
