package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxHistory is how many finished runs are kept.
const maxHistory = 20

type RunHistory struct {
	Version   string     `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
	Runs      []RunEntry `json:"runs"`
}

type RunEntry struct {
	RunID      string    `json:"run_id"`
	Variant    string    `json:"variant"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	Rows       int       `json:"rows"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
	Source     string    `json:"source"` // "tui", "cli"
}

func GetRunHistoryPath() string {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "run_history.json")
}

func LoadRunHistory() (*RunHistory, error) {
	path := GetRunHistoryPath()
	if path == "" {
		return &RunHistory{Version: "1.0"}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RunHistory{Version: "1.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}

	var h RunHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse run history: %w", err)
	}
	return &h, nil
}

func (h *RunHistory) Save() error {
	path := GetRunHistoryPath()
	if path == "" {
		return fmt.Errorf("cannot determine run history path")
	}

	h.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// Add appends a finished run, dropping the oldest beyond maxHistory.
func (h *RunHistory) Add(e RunEntry) {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	h.Runs = append(h.Runs, e)
	if len(h.Runs) > maxHistory {
		h.Runs = h.Runs[len(h.Runs)-maxHistory:]
	}
}

// Last returns the most recent run.
func (h *RunHistory) Last() (RunEntry, bool) {
	if len(h.Runs) == 0 {
		return RunEntry{}, false
	}
	return h.Runs[len(h.Runs)-1], true
}

// RecordRun loads the history, adds e and saves it.
func RecordRun(e RunEntry) error {
	h, err := LoadRunHistory()
	if err != nil {
		return err
	}
	h.Add(e)
	return h.Save()
}
