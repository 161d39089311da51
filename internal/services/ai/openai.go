package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/models"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	tracerName = "github.com/benvon/soonish/internal/services/ai"
)

// OpenAIExtractor implements Extractor using the OpenAI chat completions API
// with a JSON object response format.
type OpenAIExtractor struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIExtractor creates a new OpenAI extractor
func NewOpenAIExtractor(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIExtractor {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIExtractor{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// NewOpenAIFactory returns an ExtractorFactory reading api_key, base_url
// and model from the provider config
func NewOpenAIFactory(logger *zap.Logger, debugMode bool) ExtractorFactory {
	return func(config map[string]string) (Extractor, error) {
		if config["api_key"] == "" {
			return nil, errors.New("openai provider requires an api_key")
		}
		return NewOpenAIExtractor(config["api_key"], config["base_url"], config["model"], logger, debugMode), nil
	}
}

// Extract sends the transcript and instruction to the model and parses the
// structured reply
func (p *OpenAIExtractor) Extract(ctx context.Context, transcript []models.ChatMessage, instruction string) (*Reply, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ai.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", p.model),
		attribute.Int("llm.transcript_length", len(transcript)),
	)

	content, err := p.complete(ctx, "extract", instruction, BuildPrompt(transcript))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}

	reply, err := parseReply(content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed reply")
		return nil, err
	}
	span.SetAttributes(attribute.String("llm.reply_type", string(reply.Kind)))
	return reply, nil
}

// Prewarm checks that the configured model is reachable. Failures are
// returned but callers may ignore them.
func (p *OpenAIExtractor) Prewarm(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return fmt.Errorf("failed to prewarm model %s: %w", p.model, err)
	}
	return nil
}

func (p *OpenAIExtractor) complete(ctx context.Context, operation, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(prompt),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	requestID := ExtractRequestID(ctx)
	conversationID := ExtractConversationID(ctx)

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.Int("message_count", len(messages)),
			zap.String("prompt_preview", SanitizeContent(prompt, true)),
			zap.String("conversation_id", conversationID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("conversation_id", conversationID),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to %s: %w", operation, apiErr)
		}
		return "", fmt.Errorf("failed to %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}
	content := resp.Choices[0].Message.Content

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeContent(content, true)),
			zap.String("conversation_id", conversationID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

// parseReply decodes the model's JSON answer. Text around the outermost
// object is tolerated.
func parseReply(content string) (*Reply, error) {
	raw := []byte(content)
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		start := bytes.IndexByte(raw, '{')
		end := bytes.LastIndexByte(raw, '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if err := json.Unmarshal(raw[start:end+1], &reply); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	}
	if err := reply.Validate(); err != nil {
		return nil, err
	}
	return &reply, nil
}
