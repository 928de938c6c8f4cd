package models

import "strings"

// Act is one of the four phases of the game, derived from the player level.
type Act int

const (
	ActOne Act = iota + 1
	ActTwo
	ActThree
	ActFour
)

// String returns the in-game (Chinese) act name.
func (a Act) String() string {
	switch a {
	case ActOne:
		return "糖果囚笼"
	case ActTwo:
		return "致命午睡"
	case ActThree:
		return "噪音反噬"
	case ActFour:
		return "最后的晚安"
	}
	return "?"
}

// ActForLevel maps a player level to its act. Levels below 4 are act one,
// 4-6 act two, 7-9 act three, 10 and up act four.
func ActForLevel(level int) Act {
	switch {
	case level < 4:
		return ActOne
	case level < 7:
		return ActTwo
	case level < 10:
		return ActThree
	default:
		return ActFour
	}
}

// AudioSlot indexes the fixed track/background tables: the menu plus one
// slot per act.
type AudioSlot int

const (
	SlotMenu AudioSlot = iota
	SlotActOne
	SlotActTwo
	SlotActThree
	SlotActFour

	NumAudioSlots = 5
)

// SlotForAct returns the audio slot belonging to an act.
func SlotForAct(a Act) AudioSlot {
	return AudioSlot(int(a)) // acts start at 1, slot 0 is the menu
}

// Mode is how a choice is executed. Loud actions raise the noise level,
// silent ones lower it.
type Mode string

const (
	ModeSilent Mode = "silent"
	ModeLoud   Mode = "loud"
)

// History entry roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
)

// HistoryEntry is a single line of conversation context, oldest first.
type HistoryEntry struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Image   string `json:"image,omitempty" yaml:"image,omitempty"`
}

// ChoiceType categorizes a choice for display.
type ChoiceType string

const (
	ChoiceInteraction ChoiceType = "interaction"
	ChoiceMovement    ChoiceType = "movement"
	ChoiceCombat      ChoiceType = "combat"
	ChoiceItem        ChoiceType = "item"
)

// Choice is a single selectable action within a scene.
type Choice struct {
	ID   string     `json:"id" yaml:"id"`
	Text string     `json:"text" yaml:"text"`
	Type ChoiceType `json:"type" yaml:"type"`
}

// StatUpdates carries the deltas a scene applies to the player stats.
// An Item prefixed with "-" removes it from the inventory.
type StatUpdates struct {
	SyncRate    int    `json:"syncRate,omitempty" yaml:"sync_rate,omitempty"`
	Lucidity    int    `json:"lucidity,omitempty" yaml:"lucidity,omitempty"`
	NoiseLevel  int    `json:"noiseLevel,omitempty" yaml:"noise_level,omitempty"`
	GodmotherHP int    `json:"godmotherHp,omitempty" yaml:"godmother_hp,omitempty"`
	Item        string `json:"item,omitempty" yaml:"item,omitempty"`
}

// Scene is one unit of narrative produced by the generator. It is never
// mutated after being applied, except for ImageURL which is resolved once.
type Scene struct {
	Title       string       `json:"title" yaml:"title"`
	Narrative   string       `json:"narrative" yaml:"narrative"`
	VisualCue   string       `json:"visualCue" yaml:"visual_cue"`
	ImageURL    string       `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	Choices     []Choice     `json:"choices" yaml:"choices"`
	StatUpdates *StatUpdates `json:"statUpdates,omitempty" yaml:"stat_updates,omitempty"`
	GameOver    bool         `json:"gameOver,omitempty" yaml:"game_over,omitempty"`
	Victory     bool         `json:"victory,omitempty" yaml:"victory,omitempty"`
}

// Terminal reports whether the scene ends the game on its own.
func (s *Scene) Terminal() bool {
	return s.GameOver || s.Victory
}

// PlayerStats is the mutable per-session player record.
type PlayerStats struct {
	PlayerName     string   `json:"playerName" yaml:"player_name"`
	SyncRate       int      `json:"syncRate" yaml:"sync_rate"`
	MaxSyncRate    int      `json:"maxSyncRate" yaml:"max_sync_rate"`
	Lucidity       int      `json:"lucidity" yaml:"lucidity"`
	MaxLucidity    int      `json:"maxLucidity" yaml:"max_lucidity"`
	NoiseLevel     int      `json:"noiseLevel" yaml:"noise_level"`
	GodmotherHP    int      `json:"godmotherHp" yaml:"godmother_hp"`
	MaxGodmotherHP int      `json:"maxGodmotherHp" yaml:"max_godmother_hp"`
	Inventory      []string `json:"inventory" yaml:"inventory"`
	Level          int      `json:"level" yaml:"level"`
	CurrentAct     Act      `json:"currentAct" yaml:"current_act"`
}

// InitialStats returns the baseline stats for a fresh session. The opening
// scene advances the level to 1.
func InitialStats(name string) PlayerStats {
	return PlayerStats{
		PlayerName:     name,
		SyncRate:       100,
		MaxSyncRate:    100,
		Lucidity:       100,
		MaxLucidity:    100,
		NoiseLevel:     10,
		GodmotherHP:    100,
		MaxGodmotherHP: 100,
		Level:          0,
		CurrentAct:     ActOne,
	}
}

// RawSyncAfter returns the sync rate plus the incoming delta without any
// clamping. The game-over check reads this value, so a scene that drives
// the sync rate to exactly zero always ends the game even though the
// stored value never goes below zero.
func (s *PlayerStats) RawSyncAfter(u *StatUpdates) int {
	if u == nil {
		return s.SyncRate
	}
	return s.SyncRate + u.SyncRate
}

// Apply merges scene deltas into the stats. Bounded stats clamp into
// [0, max], the noise level into [0, 100]. Inventory items prefixed with
// "-" remove the first matching entry; anything else is appended.
func (s *PlayerStats) Apply(u *StatUpdates) {
	if u == nil {
		return
	}
	s.SyncRate = clamp(s.SyncRate+u.SyncRate, 0, s.MaxSyncRate)
	s.Lucidity = clamp(s.Lucidity+u.Lucidity, 0, s.MaxLucidity)
	s.NoiseLevel = clamp(s.NoiseLevel+u.NoiseLevel, 0, 100)
	s.GodmotherHP = clamp(s.GodmotherHP+u.GodmotherHP, 0, s.MaxGodmotherHP)
	if u.Item != "" {
		if name, ok := strings.CutPrefix(u.Item, "-"); ok {
			s.RemoveItem(name)
		} else {
			s.Inventory = append(s.Inventory, u.Item)
		}
	}
}

// AdjustNoise shifts the noise level by delta, clamped into [0, 100].
func (s *PlayerStats) AdjustNoise(delta int) {
	s.NoiseLevel = clamp(s.NoiseLevel+delta, 0, 100)
}

// RemoveItem drops the first inventory entry equal to name. Removing an
// absent item is a no-op.
func (s *PlayerStats) RemoveItem(name string) {
	for i, item := range s.Inventory {
		if item == name {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return
		}
	}
}

// AdvanceLevel increments the level and recomputes the current act.
func (s *PlayerStats) AdvanceLevel() {
	s.Level++
	s.CurrentAct = ActForLevel(s.Level)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
