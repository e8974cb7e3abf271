package api

import (
	"net/http"
	"time"

	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/pipeline"
)

type HealthResponse struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Checks         map[string]string `json:"checks"`
	ProfilesLoaded int               `json:"profiles_loaded"`
}

type HealthHandler struct {
	pipe         *pipeline.Pipeline
	ffmpegBinary string
	version      string
	startTime    time.Time
}

func NewHealthHandler(pipe *pipeline.Pipeline, ffmpegBinary, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		pipe:         pipe,
		ffmpegBinary: ffmpegBinary,
		version:      version,
		startTime:    startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if audio.CheckFFmpeg(h.ffmpegBinary) {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "missing"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	available := h.pipe.Router().AvailableBackends(r.Context())
	if len(available) > 0 {
		checks["transcription"] = "ok"
	} else {
		checks["transcription"] = "no_backend_available"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.pipe.ProfilesLoaded() > 0 {
		checks["voice_profiles"] = "ok"
	} else {
		checks["voice_profiles"] = "none_loaded"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Checks:         checks,
		ProfilesLoaded: h.pipe.ProfilesLoaded(),
	})
}
