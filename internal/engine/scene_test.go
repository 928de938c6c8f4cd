package engine

import (
	"strings"
	"testing"

	"github.com/tatianab/dreamcage/internal/models"
)

const sampleSceneJSON = `{
  "title": "糖果囚笼",
  "narrative": "教室的颜色过于饱和，空气里有糖浆的味道。",
  "visualCue": "oversaturated kindergarten classroom, pastel horror",
  "choices": [
    {"id": "hide", "text": "躲到桌子底下", "type": "movement"},
    {"id": "listen", "text": "竖起耳朵听广播", "type": "interaction"}
  ],
  "statUpdates": {"lucidity": -5, "item": "蜡笔"},
  "gameOver": false,
  "victory": false
}`

func TestParseScene(t *testing.T) {
	scene, err := parseScene(sampleSceneJSON)
	if err != nil {
		t.Fatalf("parseScene failed: %v", err)
	}

	if scene.Title != "糖果囚笼" {
		t.Errorf("title = %q", scene.Title)
	}
	if len(scene.Choices) != 2 || scene.Choices[0].Type != models.ChoiceMovement {
		t.Errorf("choices = %+v", scene.Choices)
	}
	if scene.StatUpdates == nil || scene.StatUpdates.Lucidity != -5 || scene.StatUpdates.Item != "蜡笔" {
		t.Errorf("statUpdates = %+v", scene.StatUpdates)
	}
	if scene.Terminal() {
		t.Error("sample scene should not be terminal")
	}
}

func TestParseSceneStripsFences(t *testing.T) {
	fenced := "```json\n" + sampleSceneJSON + "\n```"
	scene, err := parseScene(fenced)
	if err != nil {
		t.Fatalf("parseScene failed on fenced payload: %v", err)
	}
	if scene.Narrative == "" {
		t.Error("narrative lost while stripping fences")
	}
}

func TestParseSceneRejectsGarbage(t *testing.T) {
	if _, err := parseScene("the godmother ate the JSON"); err == nil {
		t.Error("expected error for non-JSON payload")
	}
	if _, err := parseScene(`{"title": "x", "choices": []}`); err == nil {
		t.Error("expected error for scene without narrative")
	}
}

func TestParseSceneRepairsEmptyChoices(t *testing.T) {
	scene, err := parseScene(`{"title": "x", "narrative": "y", "visualCue": "z", "choices": []}`)
	if err != nil {
		t.Fatalf("parseScene failed: %v", err)
	}
	if len(scene.Choices) == 0 {
		t.Fatal("empty choices on a non-terminal scene were not repaired")
	}
	if scene.Choices[0].ID != "continue" {
		t.Errorf("fallback choice = %+v", scene.Choices[0])
	}
}

func TestTerminalSceneKeepsEmptyChoices(t *testing.T) {
	scene, err := parseScene(`{"title": "x", "narrative": "晚安。", "visualCue": "z", "choices": [], "gameOver": true}`)
	if err != nil {
		t.Fatalf("parseScene failed: %v", err)
	}
	if len(scene.Choices) != 0 {
		t.Errorf("terminal scene grew choices: %+v", scene.Choices)
	}
}

func TestFallbackScene(t *testing.T) {
	scene := fallbackScene("Ava")
	if scene.Terminal() {
		t.Error("fallback scene must not be terminal")
	}
	if len(scene.Choices) != 1 || scene.Choices[0].ID != "retry" {
		t.Errorf("fallback choices = %+v", scene.Choices)
	}
	if !strings.Contains(scene.Narrative, "Ava") {
		t.Errorf("fallback narrative should name the player: %q", scene.Narrative)
	}
}

func TestFormatHistoryWindows(t *testing.T) {
	var history []models.HistoryEntry
	for _, content := range []string{"one", "two", "three", "four", "five", "six"} {
		history = append(history, models.HistoryEntry{Role: models.RoleUser, Content: content})
	}

	got := formatHistory(history)
	if strings.Contains(got, "one") || strings.Contains(got, "two") {
		t.Errorf("history not windowed: %q", got)
	}
	for _, want := range []string{"three", "four", "five", "six"} {
		if !strings.Contains(got, want) {
			t.Errorf("window lost entry %q: %q", want, got)
		}
	}
}

func TestFormatHistoryShort(t *testing.T) {
	got := formatHistory([]models.HistoryEntry{{Role: models.RoleSystem, Content: "opening"}})
	if !strings.Contains(got, "system: opening") {
		t.Errorf("formatHistory = %q", got)
	}
	if formatHistory(nil) != "" {
		t.Error("empty history should render empty")
	}
}
