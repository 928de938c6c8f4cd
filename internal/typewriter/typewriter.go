// Package typewriter reveals narrative text one rune per tick.
package typewriter

import "time"

// Interval is the reveal cadence used by the UI.
const Interval = 20 * time.Millisecond

// Typewriter grows a prefix of the current text. Setting new text restarts
// the reveal from empty. The zero value is ready to use.
type Typewriter struct {
	runes []rune
	shown int
}

// SetText replaces the text and restarts the reveal.
func (t *Typewriter) SetText(text string) {
	t.runes = []rune(text)
	t.shown = 0
}

// Tick reveals one more rune. It reports whether anything changed, so
// callers can stop scheduling ticks once the text is fully shown.
func (t *Typewriter) Tick() bool {
	if t.shown >= len(t.runes) {
		return false
	}
	t.shown++
	return true
}

// Skip completes the reveal immediately.
func (t *Typewriter) Skip() {
	t.shown = len(t.runes)
}

// View returns the currently revealed prefix.
func (t *Typewriter) View() string {
	return string(t.runes[:t.shown])
}

// Typing reports whether the reveal is still in progress. Choice input is
// gated on this.
func (t *Typewriter) Typing() bool {
	return t.shown < len(t.runes)
}

// Reset clears the text entirely.
func (t *Typewriter) Reset() {
	t.runes = nil
	t.shown = 0
}
