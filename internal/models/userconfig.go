package models

// TrackTable maps each audio slot (menu + four acts) to an optional media
// path. An empty string means no override.
type TrackTable [NumAudioSlots]string

// SFXKind identifies one of the feedback sounds.
type SFXKind int

const (
	SFXClick SFXKind = iota
	SFXConfirm
	SFXAlert

	NumSFXKinds = 3
)

func (k SFXKind) String() string {
	switch k {
	case SFXClick:
		return "click"
	case SFXConfirm:
		return "confirm"
	case SFXAlert:
		return "alert"
	}
	return "?"
}

// SFXTable maps each feedback sound to an optional user clip path.
type SFXTable [NumSFXKinds]string

// UserConfig holds the user's media overrides. It is loaded once at
// startup, replaced wholesale on every settings change, and persisted as a
// single record.
type UserConfig struct {
	AvatarURL          string     `json:"avatarUrl"`
	GodmotherAvatarURL string     `json:"godmotherAvatarUrl"`
	GodmotherSpriteURL string     `json:"godmotherSpriteUrl"`
	BGMTracks          TrackTable `json:"bgmTracks"`
	SFXClips           SFXTable   `json:"sfxClips"`
	SceneBackgrounds   TrackTable `json:"sceneBackgrounds"`
	BGMVolume          float64    `json:"bgmVolume"` // 0.0 to 1.0
	SFXEnabled         bool       `json:"sfxEnabled"`
}

// DefaultUserConfig returns the configuration used before the user has
// saved anything.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		BGMVolume:  0.3,
		SFXEnabled: true,
	}
}

// Normalize clamps the volume into [0, 1].
func (c *UserConfig) Normalize() {
	if c.BGMVolume < 0 {
		c.BGMVolume = 0
	}
	if c.BGMVolume > 1 {
		c.BGMVolume = 1
	}
}

// TrackFor returns the background-music override for a slot.
func (c *UserConfig) TrackFor(slot AudioSlot) string {
	return c.BGMTracks[slot]
}

// BackgroundFor returns the scene-background override for a slot.
func (c *UserConfig) BackgroundFor(slot AudioSlot) string {
	return c.SceneBackgrounds[slot]
}
