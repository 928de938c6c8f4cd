// Package engine is the boundary to the generative narrative service.
// The rest of the game only depends on its scene request/response
// contract; anything malformed is repaired here, never propagated.
package engine

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tatianab/dreamcage/internal/models"
)

//go:embed prompts/system.txt
var systemPrompt string

//go:embed prompts/opening.txt
var openingPrompt string

//go:embed prompts/next_turn.txt
var nextTurnPrompt string

const (
	textModel  = "gemini-2.5-flash"
	imageModel = "gemini-2.5-flash-image"

	imagePromptPrefix = "(Masterpiece, Best Quality, 8k, Otome Game CG, Semi-realistic 3D render, Cinematic Lighting) "
	imagePromptSuffix = ". A scene from a dark cyberpunk horror romance game called 'Escape the Kindergarten'."
)

type Engine struct {
	client *genai.Client
}

func NewEngine(ctx context.Context, apiKey string) (*Engine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Engine{client: client}, nil
}

func (e *Engine) Close() {
	e.client.Close()
}

// OpeningScene asks the generator for the act-one opening for a player.
func (e *Engine) OpeningScene(ctx context.Context, playerName string) (*models.Scene, error) {
	tmpl, err := template.New("opening").Parse(openingPrompt)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ PlayerName string }{PlayerName: playerName}); err != nil {
		return nil, err
	}

	return e.generateScene(ctx, nil, buf.String(), playerName)
}

// NextScene advances the story by one turn. The stats snapshot already
// carries the loud/silent noise adjustment for this action.
func (e *Engine) NextScene(ctx context.Context, history []models.HistoryEntry, action string, mode models.Mode, stats models.PlayerStats) (*models.Scene, error) {
	tmpl, err := template.New("next_turn").Parse(nextTurnPrompt)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := struct {
		Stats     models.PlayerStats
		Inventory string
		Action    string
		Mode      string
		Finale    bool
	}{
		Stats:     stats,
		Inventory: strings.Join(stats.Inventory, ", "),
		Action:    action,
		Mode:      strings.ToUpper(string(mode)),
		Finale:    stats.CurrentAct == models.ActFour && stats.Level >= 10,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return e.generateScene(ctx, history, buf.String(), stats.PlayerName)
}

// RenderImage turns a visual cue into an inline image, returned as a data
// URI. An empty string means the generator produced no image.
func (e *Engine) RenderImage(ctx context.Context, visualCue string) (string, error) {
	if visualCue == "" {
		return "", nil
	}

	model := e.client.GenerativeModel(imageModel)
	resp, err := model.GenerateContent(ctx, genai.Text(imagePromptPrefix+visualCue+imagePromptSuffix))
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok {
				return fmt.Sprintf("data:%s;base64,%s", blob.MIMEType, base64.StdEncoding.EncodeToString(blob.Data)), nil
			}
		}
	}
	return "", nil
}

// generateScene runs one structured-output generation round trip.
// Transport errors come back as errors; a response that arrives but does
// not decode becomes the deterministic fallback scene.
func (e *Engine) generateScene(ctx context.Context, history []models.HistoryEntry, prompt, playerName string) (*models.Scene, error) {
	sysTmpl, err := template.New("system").Parse(systemPrompt)
	if err != nil {
		return nil, err
	}
	var sysBuf bytes.Buffer
	if err := sysTmpl.Execute(&sysBuf, struct{ PlayerName string }{PlayerName: playerName}); err != nil {
		return nil, err
	}

	model := e.client.GenerativeModel(textModel)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sysBuf.String())}}
	model.SetTemperature(0.9)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = sceneSchema()

	fullPrompt := fmt.Sprintf("History:\n%s\nTask:\n%s", formatHistory(history), prompt)

	resp, err := model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return nil, fmt.Errorf("scene generation: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Printf("engine: empty scene response, using fallback")
		return fallbackScene(playerName), nil
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		log.Printf("engine: unexpected scene response part, using fallback")
		return fallbackScene(playerName), nil
	}

	scene, err := parseScene(string(text))
	if err != nil {
		log.Printf("engine: %v, using fallback", err)
		return fallbackScene(playerName), nil
	}
	return scene, nil
}

// sceneSchema constrains the generator's output to the scene contract.
// It mirrors schemas/scene.schema.json.
func sceneSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "A poetic, eerie title for the current moment. In Chinese.",
			},
			"narrative": {
				Type:        genai.TypeString,
				Description: "The story description in visual-novel style. Atmosphere, the Godmother's presence, sensory details. Under 300 characters. In Chinese.",
			},
			"visualCue": {
				Type:        genai.TypeString,
				Description: "A descriptive prompt for an image generator. Otome game CG, anime/semi-realistic 3D style. In English.",
			},
			"statUpdates": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"syncRate":    {Type: genai.TypeInteger, Description: "Health change (-/+), 0 if none."},
					"lucidity":    {Type: genai.TypeInteger, Description: "Sanity change. Negative for horror events."},
					"noiseLevel":  {Type: genai.TypeInteger, Description: "Noise change. Positive for loud actions, negative for waiting."},
					"godmotherHp": {Type: genai.TypeInteger, Description: "Damage to the Godmother. Negative to hurt her; only when the player attacks or resists effectively."},
					"item":        {Type: genai.TypeString, Description: "Item gained, or lost when prefixed with '-'."},
				},
			},
			"choices": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":   {Type: genai.TypeString},
						"text": {Type: genai.TypeString, Description: "The action text. Short and punchy. In Chinese."},
						"type": {Type: genai.TypeString, Enum: []string{"interaction", "movement", "combat", "item"}},
					},
					Required: []string{"id", "text", "type"},
				},
			},
			"gameOver": {Type: genai.TypeBoolean, Description: "True if the player dies."},
			"victory":  {Type: genai.TypeBoolean, Description: "True if the player escapes the simulation."},
		},
		Required: []string{"title", "narrative", "choices", "gameOver", "visualCue"},
	}
}
