package models

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveDir is where session snapshots are written. Overridable via config.
var SaveDir = ".saves"

// Snapshot is a resumable copy of a session: player stats, the full
// history log and the scene being shown.
type Snapshot struct {
	Stats   PlayerStats    `yaml:"stats"`
	History []HistoryEntry `yaml:"history"`
	Scene   *Scene         `yaml:"scene,omitempty"`
}

// Save writes the snapshot under SaveDir/<name>/.
func (s *Snapshot) Save(name string) error {
	dir := filepath.Join(SaveDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	statsData, err := yaml.Marshal(s.Stats)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "stats.yaml"), statsData, 0644); err != nil {
		return err
	}

	historyData, err := yaml.Marshal(s.History)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "history.yaml"), historyData, 0644); err != nil {
		return err
	}

	if s.Scene != nil {
		sceneData, err := yaml.Marshal(s.Scene)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "scene.yaml"), sceneData, 0644); err != nil {
			return err
		}
	}

	return nil
}

// LoadSnapshot reads a snapshot previously written by Save.
func LoadSnapshot(name string) (*Snapshot, error) {
	dir := filepath.Join(SaveDir, name)

	statsData, err := os.ReadFile(filepath.Join(dir, "stats.yaml"))
	if err != nil {
		return nil, err
	}
	var stats PlayerStats
	if err := yaml.Unmarshal(statsData, &stats); err != nil {
		return nil, err
	}

	historyData, err := os.ReadFile(filepath.Join(dir, "history.yaml"))
	if err != nil {
		return nil, err
	}
	var history []HistoryEntry
	if err := yaml.Unmarshal(historyData, &history); err != nil {
		return nil, err
	}

	snap := &Snapshot{Stats: stats, History: history}

	// The scene file is absent for sessions saved on a terminal screen.
	sceneData, err := os.ReadFile(filepath.Join(dir, "scene.yaml"))
	if err == nil {
		var scene Scene
		if err := yaml.Unmarshal(sceneData, &scene); err != nil {
			return nil, err
		}
		snap.Scene = &scene
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return snap, nil
}

// ListSnapshots returns the names of saved sessions.
func ListSnapshots() ([]string, error) {
	if _, err := os.Stat(SaveDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(SaveDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			// stats.yaml marks a valid snapshot
			statsPath := filepath.Join(SaveDir, entry.Name(), "stats.yaml")
			if _, err := os.Stat(statsPath); err == nil {
				names = append(names, entry.Name())
			}
		}
	}
	return names, nil
}
