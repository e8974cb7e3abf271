// Package voiceid matches anonymous diarization speakers against enrolled
// voice profiles using voice embeddings.
package voiceid

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors for voice identification failures.
var (
	ErrProfileLoad         = errors.New("voice profile load failed")
	ErrEmbeddingExtraction = errors.New("embedding extraction failed")
)

// Profile is one enrolled speaker: a name and the averaged voice embedding
// built from their enrollment samples.
type Profile struct {
	Name        string    `json:"name"`
	Embedding   []float64 `json:"embedding"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store loads and persists voice profiles as one JSON file per speaker.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a profile store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// LoadProfiles reads every *.json profile in the store directory. A missing
// directory yields zero profiles without error. Corrupt or unreadable files
// are logged and skipped; one bad profile never blocks the rest.
func (s *Store) LoadProfiles() ([]Profile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrProfileLoad, s.dir, err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		p, err := readProfile(path)
		if err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable voice profile")
			continue
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

// Save writes a profile as <name>.json in the store directory, creating the
// directory if needed.
func (s *Store) Save(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("save profile: empty name")
	}
	if len(p.Embedding) == 0 {
		return fmt.Errorf("save profile %s: empty embedding", p.Name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Name, err)
	}
	path := filepath.Join(s.dir, profileFileName(p.Name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Name, err)
	}
	return nil
}

func readProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileLoad, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileLoad, filepath.Base(path), err)
	}
	if p.Name == "" || len(p.Embedding) == 0 {
		return nil, fmt.Errorf("%w: %s: missing name or embedding", ErrProfileLoad, filepath.Base(path))
	}
	return &p, nil
}

func profileFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return safe + ".json"
}
