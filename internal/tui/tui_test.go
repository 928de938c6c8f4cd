package tui

import (
	"testing"

	"github.com/tatianab/dreamcage/internal/models"
	"github.com/tatianab/dreamcage/internal/session"
)

func TestBGMSlotByPhase(t *testing.T) {
	tests := []struct {
		name    string
		state   session.State
		act     models.Act
		slot    models.AudioSlot
		audible bool
	}{
		{"setup plays menu", session.StateSetup, models.ActOne, models.SlotMenu, true},
		{"loading plays the entered act", session.StateLoading, models.ActOne, models.SlotActOne, true},
		{"playing act two", session.StatePlaying, models.ActTwo, models.SlotActTwo, true},
		{"playing act four", session.StatePlaying, models.ActFour, models.SlotActFour, true},
		{"game over silences", session.StateGameOver, models.ActThree, 0, false},
		{"victory silences", session.StateVictory, models.ActFour, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, audible := bgmSlot(tt.state, tt.act)
			if audible != tt.audible {
				t.Fatalf("audible = %v, want %v", audible, tt.audible)
			}
			if audible && slot != tt.slot {
				t.Errorf("slot = %v, want %v", slot, tt.slot)
			}
		})
	}
}
