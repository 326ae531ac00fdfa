package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sparhub/models"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator backs the Generator interface with the Gemini API. Every
// call is bounded by its own timeout; the verdict budget is longer because
// the required output shape is stricter.
type GeminiGenerator struct {
	client         *genai.Client
	model          string
	replyTimeout   time.Duration
	verdictTimeout time.Duration
}

func NewGeminiGenerator(apiKey string, replyTimeout, verdictTimeout time.Duration) (*GeminiGenerator, error) {
	cfg := &genai.ClientConfig{}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	return &GeminiGenerator{
		client:         client,
		model:          defaultGeminiModel,
		replyTimeout:   replyTimeout,
		verdictTimeout: verdictTimeout,
	}, nil
}

func (g *GeminiGenerator) GenerateReply(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.replyTimeout)
	defer cancel()

	text, err := g.generateText(ctx, buildReplyPrompt(sess, cp, knowledge))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

func (g *GeminiGenerator) GenerateVerdict(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (*models.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.verdictTimeout)
	defer cancel()

	text, err := g.generateText(ctx, buildVerdictPrompt(sess, cp, knowledge))
	if err != nil {
		return nil, err
	}

	var verdict models.Verdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("verdict response is not valid JSON: %w", err)
	}
	if verdict.Conclusion.Outcome != models.SideParticipant && verdict.Conclusion.Outcome != models.SideCounterpart {
		return nil, fmt.Errorf("verdict declared unknown outcome %q", verdict.Conclusion.Outcome)
	}
	return &verdict, nil
}

func (g *GeminiGenerator) generateText(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", errors.New("gemini client not initialized")
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return cleanModelOutput(resp.Text()), nil
}

func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
