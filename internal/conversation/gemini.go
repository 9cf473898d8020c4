package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/njwalker/meetingbot/pkg/logging"
)

// GeminiExtractor implements Extractor using Google's Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	modelID string
	logger  *logging.Logger
}

// NewGeminiExtractor creates a Gemini-backed extractor.
func NewGeminiExtractor(ctx context.Context, apiKey, modelID string, logger *logging.Logger) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiExtractor{
		client:  client,
		modelID: modelID,
		logger:  logger,
	}, nil
}

// Extract asks the model for the turn's structured fields. Unparsable model
// output comes back as an empty record rather than an error.
func (e *GeminiExtractor) Extract(ctx context.Context, state MeetingState, userText string) (ExtractedFields, error) {
	model := e.client.GenerativeModel(e.modelID)
	model.SetTemperature(0)
	model.SystemInstruction = genai.NewUserContent(genai.Text(extractionSystemPrompt))

	prompt := buildExtractionPrompt(state, userText)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ExtractedFields{}, fmt.Errorf("conversation: gemini extraction failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return ExtractedFields{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ExtractedFields{}, errors.New("conversation: gemini returned empty content")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	raw := sb.String()
	e.logger.Debug("extraction response", "model", e.modelID, "raw", raw)

	return parseExtraction(raw), nil
}

// Close releases the underlying API client.
func (e *GeminiExtractor) Close() error {
	return e.client.Close()
}
