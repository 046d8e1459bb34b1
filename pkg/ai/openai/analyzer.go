// Package openai implements the ai.Analyzer interface on top of the OpenAI
// chat completion API with vision input.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/listhub/listing-backend/pkg/ai"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

const (
	// ModelFamilyOpenAI is the provider name.
	ModelFamilyOpenAI = "openai"

	systemPrompt = "You are a marketplace listing assistant. Given a product photo, " +
		"write a short, specific listing title and a factual description of the item, " +
		"its color, material and visible condition. Respond with a JSON object with " +
		`exactly two string fields, "title" and "description". Do not wrap the JSON ` +
		"in markdown fences."

	userPrompt = "Suggest a title and description for a marketplace listing of the item in this photo."

	maxCompletionTokens = 400
)

// Analyzer implements the ai.Analyzer interface for OpenAI.
type Analyzer struct {
	client *openai.Client
	model  string
}

// NewAnalyzer creates a new OpenAI content analyzer.
func NewAnalyzer(_ context.Context, apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "AI provider configuration is missing. Please contact your administrator.")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Analyzer{
		client: &client,
		model:  model,
	}, nil
}

// Name returns the provider name.
func (a *Analyzer) Name() string {
	return ModelFamilyOpenAI
}

// Close releases provider resources.
func (a *Analyzer) Close() error {
	return nil
}

// AnalyzeListingImage sends a product photo to the vision model and parses
// the suggested title and description from the response.
func (a *Analyzer) AnalyzeListingImage(ctx context.Context, image []byte, contentType string) (*ai.ListingSuggestion, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image: %w", errorsx.ErrInvalidArgument)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	response, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(maxCompletionTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("calling vision model: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	suggestion, err := ai.ParseSuggestion(response.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing vision model response: %w", err)
	}

	return suggestion, nil
}
