package site

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State describes the published offline site
type State struct {
	Repo     string    `json:"repo"`
	Branch   string    `json:"branch"`
	Commit   string    `json:"commit"`
	SyncedAt time.Time `json:"synced_at"`
}

// loadState loads the state file. A missing file yields (nil, nil).
func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

// saveState persists the state with a temp file and rename so readers never see a torn write
func saveState(path string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), statePrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
