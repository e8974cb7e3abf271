package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
)

// Managed transport modes reported in Status.
const (
	managedModeCredentialed = "credentialed"
	managedModeHTTP         = "http"
)

// ManagedBackend talks to a hosted serverless GPU execution platform.
//
// Two transports: the credentialed invoke API when platform tokens are
// configured (raw audio body, no re-encoding), or the stateless web
// endpoint with base64 audio in a JSON payload when they are not (e.g.
// inside a container without local platform auth).
//
// A warm execution container keeps its model loaded for a bounded idle
// window (about five minutes) before unloading; cold invocations are
// markedly slower. That is intrinsic to the platform — the long request
// timeout absorbs it.
type ManagedBackend struct {
	tokenID     string
	tokenSecret string
	invokeURL   string
	endpointURL string
	model       string
	timeout     time.Duration
	client      *http.Client
	log         zerolog.Logger
}

// ManagedOptions configures the managed platform backend.
type ManagedOptions struct {
	TokenID     string
	TokenSecret string
	InvokeURL   string // credentialed invoke API
	EndpointURL string // stateless web endpoint
	Model       string
	Timeout     time.Duration
	Log         zerolog.Logger
}

// endpointRequest is the JSON payload for the stateless web endpoint.
type endpointRequest struct {
	AudioBase64       string `json:"audio_base64"`
	Filename          string `json:"filename"`
	Language          string `json:"language,omitempty"`
	EnableDiarization bool   `json:"enable_diarization"`
}

// NewManagedBackend creates the managed platform backend.
func NewManagedBackend(opts ManagedOptions) *ManagedBackend {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &ManagedBackend{
		tokenID:     strings.TrimSpace(opts.TokenID),
		tokenSecret: strings.TrimSpace(opts.TokenSecret),
		invokeURL:   strings.TrimRight(opts.InvokeURL, "/"),
		endpointURL: strings.TrimRight(opts.EndpointURL, "/"),
		model:       opts.Model,
		timeout:     timeout,
		client:      &http.Client{Timeout: timeout},
		log:         opts.Log,
	}
}

// Name returns the backend name.
func (m *ManagedBackend) Name() string { return BackendManaged }

// credentialed reports whether the direct invoke transport can be used.
func (m *ManagedBackend) credentialed() bool {
	return m.tokenID != "" && m.tokenSecret != "" && m.invokeURL != ""
}

// Available prefers the credentialed transport, falling back to the web
// endpoint. Pure configuration check — no network round trip, so it can
// never fail or block.
func (m *ManagedBackend) Available(ctx context.Context) bool {
	return m.credentialed() || m.endpointURL != ""
}

// Transcribe invokes the platform over whichever transport is configured.
func (m *ManagedBackend) Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error) {
	if !m.Available(ctx) {
		return nil, unavailablef("managed platform not configured (set MANAGED_TOKEN_ID/MANAGED_TOKEN_SECRET or MANAGED_ENDPOINT_URL)")
	}

	start := time.Now()

	audioBytes, err := os.ReadFile(asset.Path)
	if err != nil {
		return nil, failedf("read audio file: %v", err)
	}

	m.log.Info().
		Str("file", filepath.Base(asset.Path)).
		Int("size_bytes", len(audioBytes)).
		Bool("credentialed", m.credentialed()).
		Msg("sending audio to managed platform")

	var wire wireResponse
	if m.credentialed() {
		err = m.invokeDirect(ctx, audioBytes, filepath.Base(asset.Path), opts, &wire)
	} else {
		err = m.invokeEndpoint(ctx, audioBytes, filepath.Base(asset.Path), opts, &wire)
	}
	if err != nil {
		return nil, err
	}

	result := resultFromWire(&wire, BackendManaged)
	if result.Model == "unknown" && m.model != "" {
		result.Model = m.model
	}
	result.ProcessingTime = time.Since(start).Seconds()
	result.Normalize()

	speed := 0.0
	if result.ProcessingTime > 0 {
		speed = result.Duration / result.ProcessingTime
	}
	m.log.Info().
		Float64("audio_seconds", result.Duration).
		Float64("processing_seconds", result.ProcessingTime).
		Float64("realtime_factor", speed).
		Msg("managed platform transcription complete")

	return result, nil
}

// invokeDirect posts the raw audio body to the credentialed invoke API.
func (m *ManagedBackend) invokeDirect(ctx context.Context, audioBytes []byte, filename string, opts Options, wire *wireResponse) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.invokeURL, bytes.NewReader(audioBytes))
	if err != nil {
		return failedf("create invoke request: %v", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Token-ID", m.tokenID)
	req.Header.Set("X-Token-Secret", m.tokenSecret)
	req.Header.Set("X-Filename", filename)
	if opts.Language != "" {
		req.Header.Set("X-Language", opts.Language)
	}
	req.Header.Set("X-Enable-Diarization", boolField(opts.Diarize))

	return m.doJSON(req, wire)
}

// invokeEndpoint posts a base64 JSON payload to the stateless web endpoint.
func (m *ManagedBackend) invokeEndpoint(ctx context.Context, audioBytes []byte, filename string, opts Options, wire *wireResponse) error {
	payload := endpointRequest{
		AudioBase64:       base64.StdEncoding.EncodeToString(audioBytes),
		Filename:          filename,
		Language:          opts.Language,
		EnableDiarization: opts.Diarize,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failedf("marshal endpoint payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpointURL, bytes.NewReader(body))
	if err != nil {
		return failedf("create endpoint request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return m.doJSON(req, wire)
}

// doJSON executes the request and decodes the common wire shape, mapping
// non-success statuses and embedded error fields to ErrTranscriptionFailed.
func (m *ManagedBackend) doJSON(req *http.Request, wire *wireResponse) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return failedf("managed platform request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failedf("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var we wireError
		json.Unmarshal(body, &we)
		return failedf("managed platform error (status %d): %s",
			resp.StatusCode, we.message(strings.TrimSpace(string(body))))
	}

	if err := json.Unmarshal(body, wire); err != nil {
		return failedf("decode response: %v", err)
	}

	// Some endpoints return 200 with an embedded error field.
	var we wireError
	if json.Unmarshal(body, &we) == nil && we.Error != "" {
		return failedf("managed platform error: %s", we.Error)
	}

	return nil
}

// Status returns backend diagnostics for the status API.
func (m *ManagedBackend) Status(ctx context.Context) Status {
	mode := managedModeHTTP
	url := m.endpointURL
	if m.credentialed() {
		mode = managedModeCredentialed
		url = m.invokeURL
	}
	return Status{
		Name:      BackendManaged,
		Available: m.Available(ctx),
		Mode:      mode,
		URL:       url,
		Model:     m.model,
		Disabled:  !m.credentialed() && m.endpointURL == "",
	}
}

func boolField(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

var _ Backend = (*ManagedBackend)(nil)
