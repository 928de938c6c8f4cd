// Package session owns the authoritative game state: player stats, the
// conversation history, the current scene and the progression state
// machine that ties them together.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tatianab/dreamcage/internal/models"
)

// State is the progression state machine's current phase.
type State int

const (
	StateSetup State = iota
	StateLoading
	StatePlaying
	StateGameOver
	StateVictory
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game_over"
	case StateVictory:
		return "victory"
	}
	return "?"
}

// DefaultPlayerName is used when the player leaves the name blank.
const DefaultPlayerName = "迷失者"

// Noise adjustment committed when a choice is executed, before the
// generator sees the stats.
const (
	loudNoiseDelta   = 20
	silentNoiseDelta = -10
)

// ErrNotReady is returned when a choice arrives while the session is not
// accepting one: wrong state, no scene, or a turn already in flight.
var ErrNotReady = errors.New("session is not accepting choices")

// Oracle is the scene generator boundary. Every successful scene has
// non-empty choices unless it is terminal; the adapter repairs violations
// before they reach the session.
type Oracle interface {
	OpeningScene(ctx context.Context, playerName string) (*models.Scene, error)
	NextScene(ctx context.Context, history []models.HistoryEntry, action string, mode models.Mode, stats models.PlayerStats) (*models.Scene, error)
	RenderImage(ctx context.Context, visualCue string) (string, error)
}

// Notifier receives sound cues for session events.
type Notifier interface {
	Play(kind models.SFXKind)
}

// Recorder receives the append-only transcript of a session.
type Recorder interface {
	SessionStarted(player string)
	EntryAppended(e models.HistoryEntry)
	SessionEnded(marker string)
}

// Session is the single owner of all mutable game state. Collaborators
// are injected so the machine can run against fakes in tests. All reads
// go through accessors that copy under the lock, so no reader ever
// observes a half-merged stats record.
type Session struct {
	oracle Oracle
	notify Notifier
	record Recorder
	config func() models.UserConfig

	mu         sync.Mutex
	state      State
	stats      models.PlayerStats
	history    []models.HistoryEntry
	scene      *models.Scene
	processing bool
}

// New creates a session in the setup state. notify and record may be
// nil; config may be nil when no media overrides exist.
func New(oracle Oracle, notify Notifier, record Recorder, config func() models.UserConfig) *Session {
	if config == nil {
		config = func() models.UserConfig { return models.DefaultUserConfig() }
	}
	return &Session{
		oracle: oracle,
		notify: notify,
		record: record,
		config: config,
		stats:  models.InitialStats(""),
	}
}

// Start begins a new session: trims or defaults the name, resets stats,
// and requests the opening scene. On generator failure the session
// reverts to setup with nothing else changed.
func (s *Session) Start(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlayerName
	}

	s.mu.Lock()
	if s.state != StateSetup {
		s.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", s.state)
	}
	s.state = StateLoading
	s.stats = models.InitialStats(name)
	s.history = nil
	s.scene = nil
	s.mu.Unlock()

	s.play(models.SFXConfirm)

	scene, err := s.oracle.OpeningScene(ctx, name)
	if err != nil {
		s.play(models.SFXAlert)
		s.mu.Lock()
		s.state = StateSetup
		s.mu.Unlock()
		return fmt.Errorf("start session: %w", err)
	}

	if s.record != nil {
		s.record.SessionStarted(name)
	}
	s.applyScene(ctx, scene)
	return nil
}

// SubmitChoice executes one choice. The processing guard stays up for
// the whole generator round trip, so a duplicate submission while a turn
// is in flight is rejected. On generator failure the current scene stays
// as it was.
func (s *Session) SubmitChoice(ctx context.Context, choice models.Choice, mode models.Mode) error {
	s.mu.Lock()
	if s.state != StatePlaying || s.scene == nil || s.processing {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.processing = true

	entries := []models.HistoryEntry{
		{Role: models.RoleSystem, Content: s.scene.Narrative, Image: s.scene.ImageURL},
		{Role: models.RoleUser, Content: fmt.Sprintf("[ACTION: %s] %s", strings.ToUpper(string(mode)), choice.Text)},
	}
	s.history = append(s.history, entries...)

	// The mode's noise cost lands before the generator sees the stats.
	if mode == models.ModeLoud {
		s.stats.AdjustNoise(loudNoiseDelta)
	} else {
		s.stats.AdjustNoise(silentNoiseDelta)
	}

	statsSnapshot := s.cloneStatsLocked()
	historySnapshot := append([]models.HistoryEntry(nil), s.history...)
	s.mu.Unlock()

	s.play(models.SFXClick)
	if s.record != nil {
		for _, e := range entries {
			s.record.EntryAppended(e)
		}
	}

	scene, err := s.oracle.NextScene(ctx, historySnapshot, choice.Text, mode, statsSnapshot)
	if err != nil {
		s.play(models.SFXAlert)
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
		return fmt.Errorf("submit choice: %w", err)
	}

	s.applyScene(ctx, scene)

	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
	return nil
}

// applyScene merges a freshly generated scene into the session: resolves
// a missing image, applies stat deltas, advances the level and decides
// the next state.
func (s *Session) applyScene(ctx context.Context, scene *models.Scene) {
	s.mu.Lock()
	upcoming := models.ActForLevel(s.stats.Level + 1)
	cfg := s.config()
	s.mu.Unlock()

	// Generate an image only when the upcoming act has no user-supplied
	// background to show instead.
	if scene.ImageURL == "" && scene.VisualCue != "" && cfg.BackgroundFor(models.SlotForAct(upcoming)) == "" {
		img, err := s.oracle.RenderImage(ctx, scene.VisualCue)
		if err != nil {
			log.Printf("session: image generation failed: %v", err)
		}
		scene.ImageURL = img
	}

	s.mu.Lock()
	// The death check reads the raw pre-clamp sum: a delta that drives
	// the sync rate to zero or below always ends the game, even though
	// the stored value is clamped at zero.
	rawSync := s.stats.RawSyncAfter(scene.StatUpdates)
	s.stats.Apply(scene.StatUpdates)
	s.stats.AdvanceLevel()
	s.scene = scene

	switch {
	case scene.GameOver || rawSync <= 0:
		s.state = StateGameOver
	case scene.Victory:
		s.state = StateVictory
	default:
		s.state = StatePlaying
	}
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateGameOver:
		s.play(models.SFXAlert)
		if s.record != nil {
			s.record.SessionEnded("game_over")
		}
	case StateVictory:
		s.play(models.SFXConfirm)
		if s.record != nil {
			s.record.SessionEnded("victory")
		}
	}
}

// Reset returns to setup, dropping stats, history and the current scene.
// Callers owning timers (crossfade, typewriter) cancel them on this
// transition so no callback outlives the session it animated.
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = StateSetup
	s.stats = models.InitialStats("")
	s.history = nil
	s.scene = nil
	s.processing = false
	s.mu.Unlock()

	s.play(models.SFXAlert)
	if s.record != nil {
		s.record.SessionEnded("reset")
	}
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the player stats.
func (s *Session) Stats() models.PlayerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneStatsLocked()
}

// Scene returns the scene being shown, nil before the first one arrives.
func (s *Session) Scene() *models.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// History returns a copy of the conversation log, oldest first.
func (s *Session) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryEntry(nil), s.history...)
}

// Processing reports whether a turn is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Snapshot captures the session for saving.
func (s *Session) Snapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Snapshot{
		Stats:   s.cloneStatsLocked(),
		History: append([]models.HistoryEntry(nil), s.history...),
		Scene:   s.scene,
	}
}

// Restore resumes a saved session. With a scene present the session goes
// straight to playing; otherwise it stays in setup.
func (s *Session) Restore(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = snap.Stats
	s.history = append([]models.HistoryEntry(nil), snap.History...)
	s.scene = snap.Scene
	s.processing = false
	if snap.Scene != nil {
		s.state = StatePlaying
	} else {
		s.state = StateSetup
	}
}

func (s *Session) cloneStatsLocked() models.PlayerStats {
	stats := s.stats
	stats.Inventory = append([]string(nil), s.stats.Inventory...)
	return stats
}

func (s *Session) play(kind models.SFXKind) {
	if s.notify != nil {
		s.notify.Play(kind)
	}
}
