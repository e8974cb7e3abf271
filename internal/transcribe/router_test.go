package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
)

// fakeBackend is a scriptable backend for router tests.
type fakeBackend struct {
	name      string
	available bool
	err       error
	calls     int
}

func (f *fakeBackend) Name() string                       { return f.name }
func (f *fakeBackend) Available(ctx context.Context) bool { return f.available }
func (f *fakeBackend) Status(ctx context.Context) Status {
	return Status{Name: f.name, Available: f.available}
}

func (f *fakeBackend) Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Result{
		Text:     "ok from " + f.name,
		Segments: []Segment{{Start: 0, End: 1, Text: "ok", Speaker: UnknownSpeaker}},
		Backend:  f.name,
	}, nil
}

func testAsset() *audio.Asset {
	return &audio.Asset{Path: "/tmp/test.wav", Channels: 1, SampleRate: 16000, Duration: 1}
}

func TestRouterPriorityOrder(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: true}
	managed := &fakeBackend{name: BackendManaged, available: true}
	local := &fakeBackend{name: BackendLocal, available: true}
	r := NewRouter([]Backend{ext, managed, local}, "", true, zerolog.Nop())

	result, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Backend != BackendExternal {
		t.Errorf("Backend = %q, want %q", result.Backend, BackendExternal)
	}
	if managed.calls != 0 || local.calls != 0 {
		t.Error("success on first backend must not invoke the rest")
	}
}

func TestRouterSkipsUnavailable(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: false}
	managed := &fakeBackend{name: BackendManaged, available: false}
	local := &fakeBackend{name: BackendLocal, available: true}
	r := NewRouter([]Backend{ext, managed, local}, "", true, zerolog.Nop())

	result, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Backend != BackendLocal {
		t.Errorf("Backend = %q, want %q", result.Backend, BackendLocal)
	}
	if ext.calls != 0 || managed.calls != 0 {
		t.Error("unavailable backends must not be invoked")
	}
}

func TestRouterPreferredBackend(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: true}
	local := &fakeBackend{name: BackendLocal, available: true}
	r := NewRouter([]Backend{ext, local}, BackendLocal, true, zerolog.Nop())

	result, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Backend != BackendLocal {
		t.Errorf("Backend = %q, want preferred %q", result.Backend, BackendLocal)
	}
	if ext.calls != 0 {
		t.Error("preferred success must not invoke others")
	}
}

func TestRouterFailover(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: true, err: errors.New("gpu on fire")}
	local := &fakeBackend{name: BackendLocal, available: true}
	r := NewRouter([]Backend{ext, local}, "", true, zerolog.Nop())

	result, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Backend != BackendLocal {
		t.Errorf("Backend = %q, want failover to %q", result.Backend, BackendLocal)
	}
	if ext.calls != 1 {
		t.Errorf("external calls = %d, want 1", ext.calls)
	}
}

func TestRouterFailoverDisabled(t *testing.T) {
	extErr := errors.New("gpu on fire")
	ext := &fakeBackend{name: BackendExternal, available: true, err: extErr}
	local := &fakeBackend{name: BackendLocal, available: true}
	r := NewRouter([]Backend{ext, local}, BackendExternal, false, zerolog.Nop())

	_, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if !errors.Is(err, extErr) {
		t.Fatalf("err = %v, want the preferred backend's error", err)
	}
	if local.calls != 0 {
		t.Error("failover disabled must not invoke other backends")
	}
}

func TestRouterAllBackendsFail(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: true, err: errors.New("ext down")}
	managed := &fakeBackend{name: BackendManaged, available: true, err: errors.New("managed down")}
	local := &fakeBackend{name: BackendLocal, available: true, err: errors.New("local down")}
	r := NewRouter([]Backend{ext, managed, local}, "", true, zerolog.Nop())

	_, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("err = %v, want ErrTranscriptionFailed", err)
	}
	if ext.calls != 1 || managed.calls != 1 || local.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want one each", ext.calls, managed.calls, local.calls)
	}
}

func TestRouterNoBackendAvailable(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: false}
	r := NewRouter([]Backend{ext}, "", true, zerolog.Nop())

	_, err := r.Transcribe(context.Background(), testAsset(), Options{})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestRouterBest(t *testing.T) {
	t.Run("preferred_when_available", func(t *testing.T) {
		ext := &fakeBackend{name: BackendExternal, available: true}
		local := &fakeBackend{name: BackendLocal, available: true}
		r := NewRouter([]Backend{ext, local}, BackendLocal, true, zerolog.Nop())
		if b := r.Best(context.Background()); b == nil || b.Name() != BackendLocal {
			t.Errorf("Best = %v, want %q", b, BackendLocal)
		}
	})

	t.Run("falls_back_to_priority_order", func(t *testing.T) {
		ext := &fakeBackend{name: BackendExternal, available: false}
		managed := &fakeBackend{name: BackendManaged, available: true}
		r := NewRouter([]Backend{ext, managed}, BackendExternal, true, zerolog.Nop())
		if b := r.Best(context.Background()); b == nil || b.Name() != BackendManaged {
			t.Errorf("Best = %v, want %q", b, BackendManaged)
		}
	})

	t.Run("nothing_available", func(t *testing.T) {
		ext := &fakeBackend{name: BackendExternal, available: false}
		r := NewRouter([]Backend{ext}, "", true, zerolog.Nop())
		if b := r.Best(context.Background()); b != nil {
			t.Errorf("Best = %v, want nil", b)
		}
	})
}

func TestRouterStatuses(t *testing.T) {
	ext := &fakeBackend{name: BackendExternal, available: true}
	r := NewRouter([]Backend{ext}, "", true, zerolog.Nop())

	statuses := r.Statuses(context.Background())
	if len(statuses) != 3 {
		t.Fatalf("len = %d, want all three slots", len(statuses))
	}
	if statuses[0].Name != BackendExternal || !statuses[0].Available {
		t.Errorf("statuses[0] = %+v", statuses[0])
	}
	if !statuses[1].Disabled || !statuses[2].Disabled {
		t.Error("unregistered backends should report disabled")
	}
}
