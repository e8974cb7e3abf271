package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
)

// healthTimeout bounds the reachability probe; transcription requests get
// the long per-request timeout instead.
const healthTimeout = 5 * time.Second

// ExternalBackend sends audio over HTTP to an operator-owned GPU server
// exposing the /transcribe + /health contract.
type ExternalBackend struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	probe   *http.Client
	log     zerolog.Logger
}

// wireResponse is the JSON body the /transcribe endpoint returns on success.
type wireResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
	Language       string   `json:"language"`
	Duration       float64  `json:"duration"`
	Speakers       []string `json:"speakers"`
	Model          string   `json:"model"`
	ProcessingTime float64  `json:"processing_time"`
	Turns          []Turn   `json:"turns,omitempty"`
}

// wireError is the JSON body remote backends return on failure.
type wireError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (we wireError) message(fallback string) string {
	if we.Detail != "" {
		return we.Detail
	}
	if we.Error != "" {
		return we.Error
	}
	return fallback
}

// NewExternalBackend creates the external server backend. An empty url
// leaves the backend permanently unavailable.
func NewExternalBackend(url, apiKey string, timeout time.Duration, log zerolog.Logger) *ExternalBackend {
	return &ExternalBackend{
		url:     strings.TrimRight(url, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		probe:   &http.Client{Timeout: healthTimeout},
		log:     log,
	}
}

// Name returns the backend name.
func (e *ExternalBackend) Name() string { return BackendExternal }

// Available probes GET /health with a short timeout. Never panics; any
// error means "not available".
func (e *ExternalBackend) Available(ctx context.Context) bool {
	if e.url == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url+"/health", nil)
	if err != nil {
		return false
	}
	e.setAuth(req)

	resp, err := e.probe.Do(req)
	if err != nil {
		e.log.Debug().Err(err).Msg("external server not reachable")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Transcribe uploads the audio file as multipart/form-data and decodes the
// common result shape. The request carries the long timeout: recordings can
// run multiple hours and the only way to regain control is the deadline.
func (e *ExternalBackend) Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error) {
	if e.url == "" {
		return nil, unavailablef("EXTERNAL_SERVER_URL not configured")
	}

	start := time.Now()

	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, failedf("open audio file: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(asset.Path))
	if err != nil {
		return nil, failedf("create form file: %v", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, failedf("copy audio data: %v", err)
	}

	w.WriteField("filename", filepath.Base(asset.Path))
	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}
	w.WriteField("enable_diarization", strconv.FormatBool(opts.Diarize))
	if opts.StereoMode != "" {
		w.WriteField("stereo_mode", opts.StereoMode)
		w.WriteField("left_speaker", opts.LeftSpeaker)
		w.WriteField("right_speaker", opts.RightSpeaker)
	}

	w.Close()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/transcribe", &buf)
	if err != nil {
		return nil, failedf("create request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	e.setAuth(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, failedf("external server request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failedf("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var we wireError
		json.Unmarshal(body, &we)
		return nil, failedf("external server error (status %d): %s",
			resp.StatusCode, we.message(strings.TrimSpace(string(body))))
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, failedf("decode response: %v", err)
	}

	result := resultFromWire(&wire, BackendExternal)
	result.ProcessingTime = time.Since(start).Seconds()
	result.Normalize()

	e.log.Info().
		Str("file", filepath.Base(asset.Path)).
		Float64("audio_seconds", result.Duration).
		Float64("processing_seconds", result.ProcessingTime).
		Msg("external server transcription complete")

	return result, nil
}

// Status returns backend diagnostics for the status API.
func (e *ExternalBackend) Status(ctx context.Context) Status {
	return Status{
		Name:      BackendExternal,
		Available: e.Available(ctx),
		URL:       e.url,
		Disabled:  e.url == "",
	}
}

func (e *ExternalBackend) setAuth(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

// resultFromWire converts the remote wire shape to the common Result. The
// backend field always names the variant that produced it, never whatever
// the server claims.
func resultFromWire(wire *wireResponse, backend string) *Result {
	segments := make([]Segment, len(wire.Segments))
	for i, s := range wire.Segments {
		speaker := s.Speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		segments[i] = Segment{
			Start:   s.Start,
			End:     s.End,
			Text:    strings.TrimSpace(s.Text),
			Speaker: speaker,
		}
	}

	model := wire.Model
	if model == "" {
		model = "unknown"
	}

	return &Result{
		Text:     wire.Text,
		Segments: segments,
		Language: wire.Language,
		Duration: wire.Duration,
		Backend:  backend,
		Model:    model,
		Turns:    wire.Turns,
	}
}

var _ Backend = (*ExternalBackend)(nil)
