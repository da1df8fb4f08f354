package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

var (
	ErrUpstream = errors.New("generator: upstream failure")
	ErrEmpty    = errors.New("generator: empty response")
)

const systemPrompt = "Tu es un professeur expert en pédagogie qui crée des exercices adaptés au niveau des élèves."

// textModel — то, что нужно от *genai.GenerativeModel.
type textModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Observer interface {
	ObserveGeneration(d time.Duration, err error)
}

// Generator пишет упражнения через Gemini.
type Generator struct {
	client *genai.Client
	model  textModel
	obs    Observer
	log    *slog.Logger
}

func New(ctx context.Context, apiKey, modelName string, obs Observer, log *slog.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("generator: gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(2048)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	g := newWithModel(model, obs, log)
	g.client = client
	return g, nil
}

func newWithModel(m textModel, obs Observer, log *slog.Logger) *Generator {
	return &Generator{model: m, obs: obs, log: log}
}

func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Generator) Generate(ctx context.Context, f exercises.Form) (string, error) {
	start := time.Now()
	text, err := g.generate(ctx, f)
	if g.obs != nil {
		g.obs.ObserveGeneration(time.Since(start), err)
	}
	return text, err
}

func (g *Generator) generate(ctx context.Context, f exercises.Form) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt(f)))
	if err != nil {
		g.log.Error("gemini call failed", "err", err)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	var b strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmpty
	}
	if resp.UsageMetadata != nil {
		g.log.Debug("exercise generated", "tokens", resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// Prompt собирает запрос к модели по форме.
func Prompt(f exercises.Form) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tu es professeur de %s pour le niveau %s. Génère un exercice suivant les caractéristiques suivantes :\n\n", f.Subject, f.Level)
	fmt.Fprintf(&b, "Sujet : %s\n", firstNonEmpty(f.Topic, f.Description))
	fmt.Fprintf(&b, "Type : %s\n", exercises.ParseType(string(f.Type)))
	fmt.Fprintf(&b, "Difficulté : %s\n", exercises.ParseDifficulty(string(f.Difficulty)))
	duration := f.Duration
	if duration <= 0 {
		duration = 15
	}
	fmt.Fprintf(&b, "Durée estimée : %d minutes", duration)
	if len(f.Interests) > 0 {
		fmt.Fprintf(&b, "\nCentres d'intérêt des élèves : %s\n\n", strings.Join(f.Interests, ", "))
		b.WriteString("Veuillez adapter l'exercice en utilisant des exemples et contextes liés à ces centres d'intérêt pour le rendre plus engageant.")
	}
	b.WriteString(`

Format de sortie souhaité :
1. Un énoncé clair et structuré
2. Des instructions détaillées
3. Des indices si nécessaire
4. La solution complète

L'exercice doit être adapté au niveau scolaire et inclure tous les éléments nécessaires à sa réalisation.`)
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
