package config

import (
	"encoding/json"
	"log"

	"github.com/quasilyte/gdata"

	"github.com/tatianab/dreamcage/internal/models"
)

const userConfigKey = "userconfig"

// Store persists the user's media overrides as a single JSON record under
// a well-known key. It is read once at startup and rewritten in full on
// every settings change. A store that failed to open degrades to defaults
// without blocking the game.
type Store struct {
	mgr *gdata.Manager
}

// OpenStore opens the per-user data store. The error is informational;
// the returned store is always usable.
func OpenStore() (*Store, error) {
	m, err := gdata.Open(gdata.Config{AppName: "dreamcage"})
	if err != nil {
		log.Printf("config: persistence unavailable: %v", err)
		return &Store{}, err
	}
	return &Store{mgr: m}, nil
}

// Load reads the persisted configuration, falling back to defaults when
// nothing was saved yet or the record is unreadable.
func (s *Store) Load() models.UserConfig {
	cfg := models.DefaultUserConfig()
	if s.mgr == nil {
		return cfg
	}

	data, err := s.mgr.LoadItem(userConfigKey)
	if err != nil {
		log.Printf("config: could not load settings: %v", err)
		return cfg
	}
	if len(data) == 0 {
		return cfg
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("config: could not parse saved settings: %v", err)
		return models.DefaultUserConfig()
	}
	cfg.Normalize()
	return cfg
}

// Save rewrites the whole configuration record.
func (s *Store) Save(cfg models.UserConfig) error {
	if s.mgr == nil {
		return nil
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.mgr.SaveItem(userConfigKey, data); err != nil {
		log.Printf("config: could not save settings: %v", err)
		return err
	}
	return nil
}
