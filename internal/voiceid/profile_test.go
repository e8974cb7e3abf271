package voiceid

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, zerolog.Nop())

	p := &Profile{
		Name:        "Aaron",
		Embedding:   []float64{0.1, 0.2, 0.3},
		SampleCount: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	profiles, err := store.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("len = %d, want 1", len(profiles))
	}
	if profiles[0].Name != "Aaron" || len(profiles[0].Embedding) != 3 {
		t.Errorf("loaded profile = %+v", profiles[0])
	}
}

func TestStoreMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"), zerolog.Nop())
	profiles, err := store.LoadProfiles()
	if err != nil {
		t.Fatalf("missing dir should not error, got %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("len = %d, want 0", len(profiles))
	}
}

func TestStoreSkipsCorruptProfiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, zerolog.Nop())

	if err := store.Save(&Profile{Name: "Good", Embedding: []float64{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"name":"NoEmbedding"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := store.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "Good" {
		t.Errorf("profiles = %+v, want only the good one", profiles)
	}
}

func TestStoreSaveValidation(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())
	if err := store.Save(&Profile{Name: "", Embedding: []float64{1}}); err == nil {
		t.Error("empty name should error")
	}
	if err := store.Save(&Profile{Name: "X"}); err == nil {
		t.Error("empty embedding should error")
	}
}

func TestProfileFileNameSanitized(t *testing.T) {
	got := profileFileName("Aaron P./..")
	if got != "Aaron_P____.json" {
		t.Errorf("profileFileName = %q", got)
	}
}
