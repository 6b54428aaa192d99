package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State is what hsetup remembers between runs
type State struct {
	Installs    []InstallRecord `json:"installs"`     // Successful provisioning runs
	UpdateState UpdateState     `json:"update_state"` // Self-update bookkeeping
	statePath   string
}

// UpdateState holds the self-update check history
type UpdateState struct {
	LastCheck   time.Time `json:"last_check"`   // Last time update check was performed
	SkipVersion string    `json:"skip_version"` // Version user chose to skip
}

// InstallRecord represents one completed install of a platform release
type InstallRecord struct {
	Version     string `json:"version"`
	Path        string `json:"path"`
	JavaHome    string `json:"java_home"`
	User        string `json:"user"`
	InstalledAt string `json:"installed_at"`
}

// LoadState loads the state file from the configuration directory
func LoadState() (*State, error) {
	return LoadStateFrom(filepath.Join(Dir(), "state.json"))
}

// LoadStateFrom loads the state file at path; a missing file yields an empty state
func LoadStateFrom(path string) (*State, error) {
	st := &State{
		Installs:  make([]InstallRecord, 0),
		statePath: path,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return st, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Remove BOM if present (UTF-8 BOM is EF BB BF)
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}

	st.statePath = path
	return st, nil
}

// Save saves the state to disk
func (s *State) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.statePath, data, 0644)
}

// AddInstall records an install, replacing any earlier record for the same path
func (s *State) AddInstall(rec InstallRecord) {
	rec.Path = filepath.Clean(rec.Path)

	for i, existing := range s.Installs {
		if strings.EqualFold(existing.Path, rec.Path) {
			s.Installs[i] = rec
			return
		}
	}

	s.Installs = append(s.Installs, rec)
}

// GetInstall returns the install record for a given path
func (s *State) GetInstall(path string) *InstallRecord {
	path = filepath.Clean(path)

	for _, rec := range s.Installs {
		if strings.EqualFold(rec.Path, path) {
			return &rec
		}
	}
	return nil
}
