// Simulation harness: a second LLM plays the game against the scene
// generator so a full run can be exercised without a terminal session.
//
// Usage: GEMINI_API_KEY=... go run ./testing
package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tatianab/dreamcage/internal/config"
	"github.com/tatianab/dreamcage/internal/engine"
	"github.com/tatianab/dreamcage/internal/models"
	"github.com/tatianab/dreamcage/internal/session"
)

const maxTurns = 20

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gm, err := engine.NewEngine(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("Failed to create scene generator: %v", err)
	}
	defer gm.Close()

	playerClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create player client: %v", err)
	}
	defer playerClient.Close()
	player := playerClient.GenerativeModel("gemini-2.5-flash")

	sess := session.New(gm, nil, nil, nil)

	fmt.Println("--- Starting session ---")
	if err := sess.Start(ctx, "模拟玩家"); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	for turn := 1; turn <= maxTurns; turn++ {
		scene := sess.Scene()
		stats := sess.Stats()

		fmt.Printf("--- Turn %d | %s 第 %d 层 ---\n", turn, stats.CurrentAct, stats.Level)
		fmt.Printf("Scene: %s\n%s\n", scene.Title, scene.Narrative)
		fmt.Printf("Stats: sync=%d lucidity=%d noise=%d gmHP=%d inventory=%v\n",
			stats.SyncRate, stats.Lucidity, stats.NoiseLevel, stats.GodmotherHP, stats.Inventory)

		if len(scene.Choices) == 0 {
			fmt.Println("No choices offered, stopping.")
			break
		}

		choice, mode := pickChoice(ctx, player, scene, stats)
		fmt.Printf("Player: [%s] %s\n\n", mode, choice.Text)

		if err := sess.SubmitChoice(ctx, choice, mode); err != nil {
			fmt.Printf("Turn failed: %v\n", err)
			break
		}

		switch sess.State() {
		case session.StateGameOver:
			fmt.Printf("Game Ended: player lost.\n%s\n", sess.Scene().Narrative)
			return
		case session.StateVictory:
			fmt.Printf("Game Ended: player won.\n%s\n", sess.Scene().Narrative)
			return
		}
	}
	fmt.Println("Simulation finished without an ending.")
}

// pickChoice asks the player LLM for a choice number and an execution
// mode, falling back to the first choice done quietly.
func pickChoice(ctx context.Context, player *genai.GenerativeModel, scene *models.Scene, stats models.PlayerStats) (models.Choice, models.Mode) {
	var options strings.Builder
	for i, c := range scene.Choices {
		fmt.Fprintf(&options, "%d. %s (%s)\n", i+1, c.Text, c.Type)
	}

	prompt := fmt.Sprintf(`You are playing a horror adventure game. Survive and keep your noise level low.
Scene: %s
Your stats: sync rate %d/%d, lucidity %d, noise level %d/100.
Choices:
%s
Reply with the choice number and the word "loud" or "silent", e.g. "2 silent". Silent lowers your noise level, loud raises it. Return ONLY that.`,
		scene.Narrative, stats.SyncRate, stats.MaxSyncRate, stats.Lucidity, stats.NoiseLevel, options.String())

	fallback := scene.Choices[0]
	resp, err := player.GenerateContent(ctx, genai.Text(prompt))
	if err != nil || len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return fallback, models.ModeSilent
	}

	reply := strings.Fields(strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])))
	if len(reply) == 0 {
		return fallback, models.ModeSilent
	}

	n, err := strconv.Atoi(reply[0])
	if err != nil || n < 1 || n > len(scene.Choices) {
		return fallback, models.ModeSilent
	}
	mode := models.ModeSilent
	if len(reply) > 1 && strings.EqualFold(reply[1], "loud") {
		mode = models.ModeLoud
	}
	return scene.Choices[n-1], mode
}
