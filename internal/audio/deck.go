package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Fade windows. A track switch crossfades over two seconds in twenty
// steps; fading to silence takes one second in ten steps.
const (
	crossfadeDuration = 2 * time.Second
	crossfadeSteps    = 20
	fadeOutDuration   = 1 * time.Second
	fadeOutSteps      = 10
)

// Player is one playback handle a DeckPair drives. The production
// implementation streams through the speaker; tests substitute a recorder.
type Player interface {
	Load(source string) error
	Source() string
	Play()
	Pause()
	SetVolume(v float64)
	Volume() float64
}

// DeckPair crossfades background tracks between two players. Exactly one
// deck is active, tracked by an index rather than derived from playback
// state. At most one fade runs at a time; retargeting cancels the fade in
// flight before starting its own.
type DeckPair struct {
	mu     sync.Mutex
	decks  [2]Player
	active int

	fadeGen int
	fading  bool

	// Overridable in tests to shrink the fade windows.
	step         time.Duration
	crossfadeDur time.Duration
	fadeOutDur   time.Duration
}

// NewDeckPair builds a deck pair on the engine's speaker.
func NewDeckPair(eng *Engine) *DeckPair {
	return newDeckPair(&beepDeck{eng: eng}, &beepDeck{eng: eng})
}

func newDeckPair(a, b Player) *DeckPair {
	return &DeckPair{
		decks:        [2]Player{a, b},
		step:         crossfadeDuration / crossfadeSteps,
		crossfadeDur: crossfadeDuration,
		fadeOutDur:   fadeOutDuration,
	}
}

// SetTarget switches the background music. An empty source fades the
// active deck to silence. A new source loads into the inactive deck and
// crossfades; the same source only snaps the volume to masterVol when no
// fade is running, so a volume-slider change takes effect immediately
// without retriggering a fade.
func (p *DeckPair) SetTarget(source string, masterVol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := p.decks[p.active]

	if source == "" {
		if active.Source() == "" && !p.fading {
			return
		}
		p.startFadeOutLocked()
		return
	}

	if source == active.Source() {
		if !p.fading {
			active.SetVolume(masterVol)
		}
		return
	}

	inactive := p.decks[1-p.active]
	if err := inactive.Load(source); err != nil {
		log.Printf("audio: cannot load %q: %v", source, err)
		return
	}
	inactive.SetVolume(0)
	inactive.Play()

	gen := p.beginFadeLocked()
	newIdx := 1 - p.active

	in := gween.New(0, float32(masterVol), float32(p.crossfadeDur.Seconds()), ease.Linear)
	out := gween.New(float32(masterVol), 0, float32(p.crossfadeDur.Seconds()), ease.Linear)

	go p.runFade(gen, func(dt float32) bool {
		vIn, _ := in.Update(dt)
		vOut, done := out.Update(dt)
		inactive.SetVolume(float64(vIn))
		active.SetVolume(float64(vOut))
		if done {
			// The tweens run in float32, so the final step lands a
			// rounding error away from the targets. Snap both ends.
			inactive.SetVolume(masterVol)
			active.SetVolume(0)
			active.Pause()
			p.active = newIdx
		}
		return done
	})
}

// startFadeOutLocked ramps both decks to silence, then pauses them. The
// active index does not change. Fading both matters when a crossfade was
// cancelled mid-flight: the incoming deck is already playing at partial
// volume and must not be left audible.
func (p *DeckPair) startFadeOutLocked() {
	active := p.decks[p.active]
	other := p.decks[1-p.active]

	if active.Volume() <= 0 && other.Volume() <= 0 {
		active.Pause()
		other.Pause()
		return
	}

	gen := p.beginFadeLocked()
	secs := float32(p.fadeOutDur.Seconds())
	aOut := gween.New(float32(active.Volume()), 0, secs, ease.Linear)
	oOut := gween.New(float32(other.Volume()), 0, secs, ease.Linear)

	go p.runFade(gen, func(dt float32) bool {
		av, done := aOut.Update(dt)
		ov, _ := oOut.Update(dt)
		active.SetVolume(float64(av))
		other.SetVolume(float64(ov))
		if done {
			active.SetVolume(0)
			other.SetVolume(0)
			active.Pause()
			other.Pause()
		}
		return done
	})
}

// beginFadeLocked cancels any fade in flight and claims the next one.
func (p *DeckPair) beginFadeLocked() int {
	p.fadeGen++
	p.fading = true
	return p.fadeGen
}

// runFade ticks the step function until it finishes or a newer fade takes
// over. The generation check under the pair lock makes cancellation
// deterministic: a superseded fade never touches a deck again.
func (p *DeckPair) runFade(gen int, stepFn func(dt float32) bool) {
	ticker := time.NewTicker(p.step)
	defer ticker.Stop()

	dt := float32(p.step.Seconds())
	for range ticker.C {
		p.mu.Lock()
		if p.fadeGen != gen {
			p.mu.Unlock()
			return
		}
		done := stepFn(dt)
		if done {
			p.fading = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Stop cancels any fade in flight and pauses both decks. Used on session
// reset so no timer outlives the session it was ramping for.
func (p *DeckPair) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fadeGen++
	p.fading = false
	for _, d := range p.decks {
		d.SetVolume(0)
		d.Pause()
	}
}

// ActiveSource returns the source loaded on the active deck.
func (p *DeckPair) ActiveSource() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decks[p.active].Source()
}

// beepDeck is the speaker-backed Player. When the engine is silent the
// deck tracks sources and volumes without producing sound, so the fade
// logic behaves identically with or without an audio device.
type beepDeck struct {
	eng      *Engine
	src      string
	vol      float64
	ctrl     *beep.Ctrl
	volfx    *effects.Volume
	streamer beep.StreamSeekCloser
}

func (d *beepDeck) Load(source string) error {
	d.unloadCurrent()
	d.src = source
	d.vol = 0

	if !d.eng.Live() {
		return nil
	}

	f, err := os.Open(source)
	if err != nil {
		return err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(source)) {
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
		return fmt.Errorf("unsupported track format %q", filepath.Ext(source))
	}
	if err != nil {
		f.Close()
		return err
	}

	looped := beep.Loop(-1, streamer)
	var chained beep.Streamer = looped
	if format.SampleRate != sampleRate {
		chained = beep.Resample(4, format.SampleRate, sampleRate, looped)
	}

	ctrl := &beep.Ctrl{Streamer: chained, Paused: true}
	volfx := newVolume(ctrl, 0)

	d.streamer = streamer
	d.ctrl = ctrl
	d.volfx = volfx
	d.eng.play(volfx)
	return nil
}

// unloadCurrent detaches the previous streamer so the mixer drops it.
func (d *beepDeck) unloadCurrent() {
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Streamer = nil
	speaker.Unlock()
	if d.streamer != nil {
		d.streamer.Close()
	}
	d.ctrl = nil
	d.volfx = nil
	d.streamer = nil
}

func (d *beepDeck) Source() string { return d.src }

func (d *beepDeck) Play() {
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
}

func (d *beepDeck) Pause() {
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

func (d *beepDeck) SetVolume(v float64) {
	d.vol = v
	if d.volfx == nil {
		return
	}
	speaker.Lock()
	setVolume(d.volfx, v)
	speaker.Unlock()
}

func (d *beepDeck) Volume() float64 { return d.vol }
