package ai

import (
	"context"

	"github.com/benvon/soonish/internal/models"
)

// ReplyKind is the variant of an extraction reply
type ReplyKind string

const (
	ReplyQuestion     ReplyKind = "question"
	ReplyConfirmation ReplyKind = "confirmation"
	ReplySuggestion   ReplyKind = "suggestion"
)

// Reply is the structured result of one extraction call. Suggestion is set
// only for ReplySuggestion.
type Reply struct {
	Kind       ReplyKind              `json:"type"`
	Text       string                 `json:"text"`
	Suggestion *models.PlanSuggestion `json:"plan,omitempty"`
}

// Validate checks that the reply is one of the three well-formed variants
func (r *Reply) Validate() error {
	switch r.Kind {
	case ReplyQuestion, ReplyConfirmation:
		return nil
	case ReplySuggestion:
		if r.Suggestion == nil {
			return ErrMalformedReply
		}
		return nil
	}
	return ErrMalformedReply
}

// Extractor is the language-model collaborator that reads a transcript and
// answers with a question, an acknowledgement or a plan suggestion
type Extractor interface {
	// Extract runs one extraction over the full transcript
	Extract(ctx context.Context, transcript []models.ChatMessage, instruction string) (*Reply, error)

	// Prewarm may be called speculatively before the first turn
	Prewarm(ctx context.Context) error
}

// ExtractorFactory creates an extractor from provider settings
type ExtractorFactory func(config map[string]string) (Extractor, error)

// ProviderRegistry stores available extractor providers
type ProviderRegistry struct {
	providers map[string]ExtractorFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ExtractorFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ExtractorFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Extractor, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
