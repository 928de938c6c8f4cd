package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/tatianab/dreamcage/internal/models"
)

// clipVolume is the fixed playback level for user-supplied clips.
const clipVolume = 0.5

// Emitter plays one-shot feedback sounds: a user clip when one is
// configured for the kind, otherwise a synthesized tone. All failures are
// logged and swallowed.
type Emitter struct {
	eng *Engine

	mu  sync.Mutex
	cfg models.UserConfig
}

// NewEmitter creates an emitter with the given configuration.
func NewEmitter(eng *Engine, cfg models.UserConfig) *Emitter {
	return &Emitter{eng: eng, cfg: cfg}
}

// UpdateConfig replaces the configuration wholesale.
func (e *Emitter) UpdateConfig(cfg models.UserConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// Play emits the feedback sound for kind. No-op when effects are disabled.
func (e *Emitter) Play(kind models.SFXKind) {
	e.mu.Lock()
	enabled := e.cfg.SFXEnabled
	clip := e.cfg.SFXClips[kind]
	e.mu.Unlock()

	if !enabled {
		return
	}

	if clip != "" {
		if err := e.playClip(clip); err != nil {
			log.Printf("audio: sfx clip %q: %v", clip, err)
		}
		return
	}

	e.eng.play(newSFXStreamer(kind, sampleRate))
}

// playClip decodes and plays a user clip once at a moderate volume.
func (e *Emitter) playClip(path string) error {
	if !e.eng.Live() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		f.Close()
		return fmt.Errorf("unsupported clip format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return err
	}

	var chained beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		chained = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}

	e.eng.play(beep.Seq(newVolume(chained, clipVolume), beep.Callback(func() {
		streamer.Close()
	})))
	return nil
}
