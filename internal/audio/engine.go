// Package audio drives background music and feedback sounds through a
// single speaker mixer. Two decks crossfade the act tracks; short effects
// are either user clips or synthesized tones.
package audio

import (
	"log"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(48000)

// Engine owns the speaker and the shared mixer. If the host has no usable
// audio device the engine runs in silent mode and every call becomes a
// no-op; gameplay never depends on audio working.
type Engine struct {
	mixer *beep.Mixer
	live  bool
}

// NewEngine creates an engine. Call Start before playing anything.
func NewEngine() *Engine {
	return &Engine{mixer: &beep.Mixer{}}
}

// Start initializes the speaker. Failure switches to silent mode and is
// not an error.
func (e *Engine) Start() {
	if e.live {
		return
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Millisecond*100)); err != nil {
		log.Printf("audio: speaker unavailable, running silent: %v", err)
		return
	}
	speaker.Play(e.mixer)
	e.live = true
}

// Live reports whether real playback is available.
func (e *Engine) Live() bool {
	return e.live
}

// Close silences everything. The speaker itself has no close; clearing the
// mixer drops all streamers.
func (e *Engine) Close() {
	if !e.live {
		return
	}
	speaker.Lock()
	e.mixer.Clear()
	speaker.Unlock()
}

// play adds a one-shot streamer to the mixer.
func (e *Engine) play(s beep.Streamer) {
	if !e.live || s == nil {
		return
	}
	speaker.Lock()
	e.mixer.Add(s)
	speaker.Unlock()
}

// newVolume wraps a streamer in a log-scale volume effect. A volume of 0
// cannot be expressed as log2, so it maps to silence.
func newVolume(s beep.Streamer, vol float64) *effects.Volume {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// setVolume retunes an existing volume effect in place.
func setVolume(v *effects.Volume, vol float64) {
	if vol <= 0 {
		v.Volume = 0
		v.Silent = true
		return
	}
	v.Volume = math.Log2(vol)
	v.Silent = false
}
