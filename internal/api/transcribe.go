package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/pipeline"
	"github.com/aputting/scribe-engine/internal/transcribe"
)

// maxUploadBytes caps in-memory multipart parsing; larger uploads spill to
// temp files.
const maxUploadBytes = 32 << 20

// TranscribeHandler accepts an audio upload and runs it through the full
// pipeline, returning the attributed transcript.
type TranscribeHandler struct {
	pipe    *pipeline.Pipeline
	workDir string
	log     zerolog.Logger
}

// NewTranscribeHandler creates a transcription upload handler.
func NewTranscribeHandler(pipe *pipeline.Pipeline, workDir string, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		pipe:    pipe,
		workDir: workDir,
		log:     log.With().Str("handler", "transcribe").Logger(),
	}
}

// ServeHTTP handles POST /api/v1/transcribe. The audio goes in the "file"
// multipart field, an optional "language" field carries an ISO-639 hint;
// the request blocks until processing completes.
func (h *TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.workDir, "upload_*"+filepath.Ext(header.Filename))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not buffer upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		WriteError(w, http.StatusInternalServerError, "could not buffer upload")
		return
	}
	tmp.Close()

	result, err := h.pipe.Process(r.Context(), tmp.Name(), r.FormValue("language"))
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("transcription failed")
		switch {
		case errors.Is(err, transcribe.ErrBackendUnavailable):
			WriteErrorDetail(w, http.StatusServiceUnavailable, "no transcription backend available", err.Error())
		case errors.Is(err, transcribe.ErrTranscriptionFailed):
			WriteErrorDetail(w, http.StatusBadGateway, "transcription failed", err.Error())
		default:
			WriteErrorDetail(w, http.StatusUnprocessableEntity, "could not process audio", err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
