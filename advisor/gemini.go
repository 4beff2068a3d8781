package advisor

import (
	"context"
	"fmt"

	"chest-xray-pipeline/imbalance"

	"google.golang.org/genai"
)

const (
	geminiModel  = "gemini-2.5-flash"
	systemPrompt = `You are a data quality assistant for a chest X-ray classification project with the classes normal, clavicle_fracture and foreign_body.
You advise on collecting, labelling and balancing training images.
Be concise and practical. Do not suggest changing the model architecture.`
)

// GeminiAdvisor asks Gemini for dataset advice.
type GeminiAdvisor struct {
	client *genai.Client
}

func NewGeminiAdvisor(ctx context.Context, apiKey string) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiAdvisor{client: client}, nil
}

func (g *GeminiAdvisor) Advise(ctx context.Context, a imbalance.Analysis) ([]string, error) {
	systemInstruction := genai.NewContentFromText(systemPrompt, genai.RoleModel)
	userContent := genai.NewContentFromText(Prompt(a), genai.RoleUser)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.4)),
		TopP:              genai.Ptr(float32(0.8)),
		MaxOutputTokens:   int32(300),
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		geminiModel,
		[]*genai.Content{userContent},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return splitLines(resp.Text()), nil
}
