package tui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tatianab/dreamcage/internal/audio"
	"github.com/tatianab/dreamcage/internal/config"
	"github.com/tatianab/dreamcage/internal/engine"
	"github.com/tatianab/dreamcage/internal/models"
	"github.com/tatianab/dreamcage/internal/session"
	"github.com/tatianab/dreamcage/internal/transcript"
)

// Start wires the whole application together and runs the UI until the
// player quits. It is the default entry point; callers that need custom
// wiring use Run directly.
func Start() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.DataDir != "" {
		models.SaveDir = filepath.Join(cfg.DataDir, "saves")
		transcript.Dir = filepath.Join(cfg.DataDir, "transcripts")
	}

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("creating scene generator: %w", err)
	}
	defer eng.Close()

	store, _ := config.OpenStore() // degrades to defaults, already logged
	userCfg := store.Load()

	sound := audio.NewEngine()
	sound.Start()
	defer sound.Close()

	decks := audio.NewDeckPair(sound)
	defer decks.Stop()
	sfx := audio.NewEmitter(sound, userCfg)

	var recorder session.Recorder
	if w, err := transcript.NewWriter(); err != nil {
		fmt.Printf("Warning: transcript disabled: %v\n", err)
	} else {
		recorder = w
		defer w.Close()
	}

	sess := session.New(eng, sfx, recorder, store.Load)
	return Run(sess, store, decks, sfx, userCfg)
}
