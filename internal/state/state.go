package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFile is the filename for the run journal
const StateFile = ".provision-state.json"

// maxRecords bounds the journal; older runs are dropped first.
const maxRecords = 200

// State is the run journal, stored next to provision.toml (git-ignored)
type State struct {
	Version string      `json:"version"` // State file format version
	Runs    []RunRecord `json:"runs"`

	path string
}

// RunRecord describes one apply of one script
type RunRecord struct {
	Script      string    `json:"script"`   // Script name or path
	Checksum    string    `json:"checksum"` // SHA-256 of the script text
	Environment string    `json:"environment"`
	Strategy    string    `json:"strategy"` // native, split or cli
	Applied     int       `json:"applied"`
	Skipped     int       `json:"skipped"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Checksum returns the hex SHA-256 digest of a script
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Load reads the journal from dir
// Returns an empty journal if the file doesn't exist
func Load(dir string) (*State, error) {
	path := filepath.Join(dir, StateFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{Version: "1", path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	state.path = path

	return &state, nil
}

// Save writes the journal atomically (temp file, then rename)
func (s *State) Save() error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}

	return nil
}

// Path is where the journal is stored
func (s *State) Path() string {
	return s.path
}

// Record appends a run and saves the journal
func (s *State) Record(r RunRecord) error {
	if r.AppliedAt.IsZero() {
		r.AppliedAt = time.Now().UTC()
	}
	s.Runs = append(s.Runs, r)
	if len(s.Runs) > maxRecords {
		s.Runs = s.Runs[len(s.Runs)-maxRecords:]
	}
	return s.Save()
}

// Last returns the most recent run of script, or nil
func (s *State) Last(script string) *RunRecord {
	for i := len(s.Runs) - 1; i >= 0; i-- {
		if s.Runs[i].Script == script {
			return &s.Runs[i]
		}
	}
	return nil
}

// LastSuccess returns the most recent successful run of script, or nil
func (s *State) LastSuccess(script string) *RunRecord {
	for i := len(s.Runs) - 1; i >= 0; i-- {
		if s.Runs[i].Script == script && s.Runs[i].Succeeded {
			return &s.Runs[i]
		}
	}
	return nil
}

// Latest returns the most recent run of every script, oldest first
func (s *State) Latest() []RunRecord {
	seen := map[string]bool{}
	var out []RunRecord
	for i := len(s.Runs) - 1; i >= 0; i-- {
		if seen[s.Runs[i].Script] {
			continue
		}
		seen[s.Runs[i].Script] = true
		out = append([]RunRecord{s.Runs[i]}, out...)
	}
	return out
}
