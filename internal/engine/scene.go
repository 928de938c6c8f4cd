package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tatianab/dreamcage/internal/models"
)

// fallbackChoices is what a non-terminal scene gets when the generator
// returns no choices. The state machine requires at least one.
func fallbackChoices() []models.Choice {
	return []models.Choice{
		{ID: "continue", Text: "继续探索", Type: models.ChoiceMovement},
		{ID: "look", Text: "观察四周", Type: models.ChoiceInteraction},
	}
}

// parseScene decodes a generator payload into a scene. Models sometimes
// wrap JSON in markdown fences despite the response MIME type, so those
// are stripped first.
func parseScene(raw string) (*models.Scene, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var scene models.Scene
	if err := json.Unmarshal([]byte(clean), &scene); err != nil {
		return nil, fmt.Errorf("failed to parse scene JSON: %w", err)
	}
	if scene.Narrative == "" {
		return nil, fmt.Errorf("scene has no narrative")
	}

	repairScene(&scene)
	return &scene, nil
}

// repairScene enforces the non-empty-choices invariant on non-terminal
// scenes instead of propagating a malformed payload.
func repairScene(s *models.Scene) {
	if len(s.Choices) == 0 && !s.Terminal() {
		s.Choices = fallbackChoices()
	}
}

// fallbackScene is the deterministic scene shown when the generator
// returned something unusable. It keeps the session alive with a single
// retry choice.
func fallbackScene(playerName string) *models.Scene {
	return &models.Scene{
		Title:     "系统错误",
		Narrative: fmt.Sprintf("模拟连接断开。教母的数据流变得极不稳定……她似乎找不到 %s 了。（连接错误 - 请重试）", playerName),
		VisualCue: "Abstract glitch art, red and black static, broken digital heart",
		Choices:   []models.Choice{{ID: "retry", Text: "尝试重连", Type: models.ChoiceInteraction}},
	}
}

// historyWindow is how many recent entries go upstream with each turn.
const historyWindow = 4

// formatHistory renders the trailing window of the conversation log.
func formatHistory(history []models.HistoryEntry) string {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}

	var b strings.Builder
	for _, h := range history[start:] {
		b.WriteString(h.Role)
		b.WriteString(": ")
		b.WriteString(h.Content)
		b.WriteString("\n")
	}
	return b.String()
}
