package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tatianab/dreamcage/internal/audio"
	"github.com/tatianab/dreamcage/internal/config"
	"github.com/tatianab/dreamcage/internal/engine"
	"github.com/tatianab/dreamcage/internal/models"
	"github.com/tatianab/dreamcage/internal/session"
	"github.com/tatianab/dreamcage/internal/transcript"
	"github.com/tatianab/dreamcage/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DataDir != "" {
		models.SaveDir = filepath.Join(cfg.DataDir, "saves")
		transcript.Dir = filepath.Join(cfg.DataDir, "transcripts")
	}

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey)
	if err != nil {
		fmt.Printf("Error creating scene generator: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	store, _ := config.OpenStore()
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

	if err := tui.Run(sess, store, decks, sfx, userCfg); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
